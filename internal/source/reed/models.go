package reed

import "encoding/json"

// searchResponse is the Reed search API envelope.
type searchResponse struct {
	Results      []json.RawMessage `json:"results"`
	TotalResults int               `json:"totalResults"`
}

// job is one Reed search result.
type job struct {
	JobID          int64   `json:"jobId"`
	EmployerName   string  `json:"employerName"`
	JobTitle       string  `json:"jobTitle"`
	LocationName   string  `json:"locationName"`
	MinimumSalary  float64 `json:"minimumSalary"`
	MaximumSalary  float64 `json:"maximumSalary"`
	Currency       string  `json:"currency"`
	Date           string  `json:"date"`
	JobDescription string  `json:"jobDescription"`
	JobURL         string  `json:"jobUrl"`
}
