package dto

// ProcessObjectRequest asks the service to run the reporting pipeline for one uploaded object
type ProcessObjectRequest struct {
	Bucket string `json:"bucket" example:"report-conversions-bucket"`
	Key    string `json:"key" binding:"required" example:"networks/tonic/job/account/2025-02-01/13/2025-02-01T13:00:00.000Z.json"`
}
