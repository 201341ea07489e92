package models

import "encoding/json"

// RecordResult is the payload written to the results topic.
type RecordResult struct {
	RunID  string    `json:"run_id"`
	Record JobRecord `json:"record"`
}

// NewRecordResult marshals one harvested record for publishing.
func NewRecordResult(runID string, rec JobRecord) ([]byte, error) {
	return json.Marshal(RecordResult{RunID: runID, Record: rec})
}
