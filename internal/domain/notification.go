package domain

// S3EventNotification is the body S3 publishes to the queue when an object is created
type S3EventNotification struct {
	Records []S3EventRecord `json:"Records"`
}

type S3EventRecord struct {
	EventName string   `json:"eventName,omitempty"`
	S3        S3Entity `json:"s3"`
}

type S3Entity struct {
	Bucket S3Bucket `json:"bucket"`
	Object S3Object `json:"object"`
}

type S3Bucket struct {
	Name string `json:"name"`
}

type S3Object struct {
	// Key is URL-encoded the way S3 delivers it
	Key  string `json:"key"`
	Size int64  `json:"size,omitempty"`
}
