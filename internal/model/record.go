package model

// PersonRecord is one candidate row extracted from a results page.
type PersonRecord struct {
	Name        string `json:"name"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	Location    string `json:"location,omitempty"`
	RawText     string `json:"raw_text,omitempty"`

	// Normalized caches the normalized form of Name, filled at extraction
	// time so matching never re-normalizes per comparison.
	Normalized string `json:"-"`
}
