package domain

import "time"

// RecordError is one contained per-record failure inside a batch.
type RecordError struct {
	SourceName string
	ExternalID string
	Reason     string
}

// IngestReport summarizes one source's batch.
type IngestReport struct {
	SourceName string
	Fetched    int
	Inserted   int
	Merged     int
	Eligible   int
	Filtered   int
	Errors     []RecordError
}

// RunReport is the aggregate result of one pipeline invocation. A run always
// ends with this report, never a silent partial success.
type RunReport struct {
	RunID      string
	Ingests    []IngestReport
	SourceErrs map[string]string // source name -> fetch failure reason
	Promoted   int               // FILTERED_OUT rows promoted by a criteria change
	Tailored   int
	Generated  int
	Failed     int
	Duration   time.Duration
}

func (r *RunReport) Inserted() int {
	n := 0
	for _, ing := range r.Ingests {
		n += ing.Inserted
	}
	return n
}

func (r *RunReport) Merged() int {
	n := 0
	for _, ing := range r.Ingests {
		n += ing.Merged
	}
	return n
}

func (r *RunReport) RecordErrors() int {
	n := 0
	for _, ing := range r.Ingests {
		n += len(ing.Errors)
	}
	return n
}
