package adzuna

import "encoding/json"

// searchResponse is the Adzuna search API envelope.
type searchResponse struct {
	Count   int               `json:"count"`
	Results []json.RawMessage `json:"results"`
}

// job is one Adzuna search result.
type job struct {
	ID          json.Number `json:"id"`
	Title       string      `json:"title"`
	Company     company     `json:"company"`
	Location    location    `json:"location"`
	Description string      `json:"description"`
	RedirectURL string      `json:"redirect_url"`
	SalaryMin   float64     `json:"salary_min"`
	SalaryMax   float64     `json:"salary_max"`
	Created     string      `json:"created"`
}

type company struct {
	DisplayName string `json:"display_name"`
}

type location struct {
	DisplayName string `json:"display_name"`
}
