package models

import "strings"

// JobRecord is one harvested job listing.
type JobRecord struct {
	Name           string `json:"name"`
	ID             string `json:"id"`
	URL            string `json:"url"`
	Company        string `json:"company"`
	Location       string `json:"location"`
	EmploymentType string `json:"employment_type"`
	Salary         string `json:"salary"`
	Experience     string `json:"experience"`
}

// EmploymentTypes splits the multi-value employment type field into its
// individual observations. The record itself keeps the unsplit string.
func (r JobRecord) EmploymentTypes() []string {
	return SplitMultiValue(r.EmploymentType)
}

// SplitMultiValue splits a comma-separated field, dropping blanks.
func SplitMultiValue(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
