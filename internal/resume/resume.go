// Package resume loads the base resume used as tailoring input.
package resume

import (
	"encoding/json"
	"fmt"
	"os"

	"job_applier/internal/domain"
)

// Load reads and validates the base resume from a JSON file.
func Load(path string) (*domain.ResumeData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read resume data: %w", err)
	}

	var data domain.ResumeData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse resume data: %w", err)
	}

	if data.PersonalInfo.Name == "" {
		return nil, fmt.Errorf("%w: resume missing personal_info.name", domain.ErrInvalidInput)
	}
	if len(data.Experience) == 0 {
		return nil, fmt.Errorf("%w: resume has no experience entries", domain.ErrInvalidInput)
	}

	return &data, nil
}
