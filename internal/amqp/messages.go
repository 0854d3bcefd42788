package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// JobType names the background work a message asks for.
type JobType string

const (
	JobImport       JobType = "import"
	JobExportReport JobType = "export_report"
)

// Job is the message body for both import and report export work. The
// worker reloads everything else from the database.
type Job struct {
	Type      JobType   `json:"type"`
	UploadID  string    `json:"upload_id,omitempty"`
	Months    int       `json:"months,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewImportJob(uploadID, requestID string) *Job {
	return &Job{Type: JobImport, UploadID: uploadID, RequestID: requestID, Timestamp: time.Now()}
}

func NewExportReportJob(months int, requestID string) *Job {
	return &Job{Type: JobExportReport, Months: months, RequestID: requestID, Timestamp: time.Now()}
}

// Validate rejects messages the worker could never process.
func (j *Job) Validate() error {
	switch j.Type {
	case JobImport:
		if j.UploadID == "" {
			return fmt.Errorf("import job without upload id")
		}
	case JobExportReport:
		if j.Months < 1 {
			return fmt.Errorf("export job with invalid months %d", j.Months)
		}
	default:
		return fmt.Errorf("unknown job type %q", j.Type)
	}
	return nil
}

func (j *Job) ToJSON() ([]byte, error) {
	return json.Marshal(j)
}

// JobFromJSON decodes and validates a message body.
func JobFromJSON(data []byte) (*Job, error) {
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, err
	}
	if err := j.Validate(); err != nil {
		return nil, err
	}
	return &j, nil
}
