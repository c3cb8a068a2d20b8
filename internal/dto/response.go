package dto

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error" example:"validation_error"`
	Message string `json:"message,omitempty" example:"key is required"`
}

// HealthResponse reports whether the durable store is reachable
type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}

// ProcessObjectResponse counts the object's records by outcome
type ProcessObjectResponse struct {
	Bucket       string `json:"bucket"`
	Key          string `json:"key"`
	Read         int    `json:"read"`
	Unsubscribed int    `json:"unsubscribed"`
	Duplicates   int    `json:"duplicates"`
	Invalid      int    `json:"invalid"`
	Reported     int    `json:"reported"`
	Failed       int    `json:"failed"`
}
