package domain

// ResumeData is the base structured resume used as tailoring input.
// Loaded once per run, immutable within it.
type ResumeData struct {
	PersonalInfo PersonalInfo        `json:"personal_info"`
	Summary      string              `json:"summary"`
	Skills       map[string][]string `json:"skills"` // category -> skills
	Experience   []Experience        `json:"experience"`
	Projects     []Project           `json:"projects"`
	Education    []Education         `json:"education"`
}

type PersonalInfo struct {
	Name     string `json:"name"`
	Title    string `json:"title"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Location string `json:"location,omitempty"`
	LinkedIn string `json:"linkedin,omitempty"`
	Website  string `json:"website,omitempty"`
}

type Experience struct {
	Role             string   `json:"role"`
	Company          string   `json:"company"`
	Location         string   `json:"location,omitempty"`
	Duration         string   `json:"duration"`
	Responsibilities []string `json:"responsibilities"`
}

type Project struct {
	Name        string   `json:"name"`
	URL         string   `json:"url,omitempty"`
	Description string   `json:"description,omitempty"`
	Details     []string `json:"details,omitempty"`
}

type Education struct {
	Degree         string `json:"degree"`
	Institution    string `json:"institution"`
	GraduationYear string `json:"graduation_year,omitempty"`
}

// TailoredResume is the gateway's posting-specific rewrite of the base
// resume. Same shape so the renderer template serves both.
type TailoredResume struct {
	ResumeData

	// Metadata ties the variant back to the posting it was tailored for.
	Metadata TailoringMetadata `json:"metadata"`
}

type TailoringMetadata struct {
	Fingerprint string `json:"fingerprint"`
	JobTitle    string `json:"job_title"`
	Company     string `json:"company"`
	JobURL      string `json:"job_url"`
}
