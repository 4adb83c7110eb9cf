package domain

// SearchCriteria is what a source search client is asked for. Sources map
// it onto their own query parameters.
type SearchCriteria struct {
	Keywords    []string
	Locations   []string
	SalaryFloor float64
}
