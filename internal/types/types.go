package types

import "strings"

// Inputs -------------------------------------------------------------------------

// SourceFile is one named text blob submitted for analysis.
type SourceFile struct {
	Name    string `json:"name" yaml:"name"`
	Content string `json:"content" yaml:"content"`
}

// Report -------------------------------------------------------------------------

type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Severities lists the closed severity set in descending order.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

// ParseSeverity trims and upper-cases s and checks it against the closed set.
func ParseSeverity(s string) (Severity, bool) {
	v := Severity(strings.ToUpper(strings.TrimSpace(s)))
	for _, sev := range Severities {
		if v == sev {
			return v, true
		}
	}
	return "", false
}

type Vulnerability struct {
	Severity    Severity `json:"severity" yaml:"severity"`
	Kind        string   `json:"type" yaml:"type"`
	Description string   `json:"description" yaml:"description"`
	Location    string   `json:"location" yaml:"location"` // file and approximate line
}

type RefactoredFile struct {
	Filename        string   `json:"filename" yaml:"filename"`
	OriginalContent string   `json:"originalContent" yaml:"originalContent"`
	NewContent      string   `json:"newContent" yaml:"newContent"`
	ChangeNotes     []string `json:"changesSummary" yaml:"changesSummary"`
}

// AnalysisReport is the terminal artifact of one pipeline run. It is built once
// by the validator and never mutated afterwards.
type AnalysisReport struct {
	PRTitle         string           `json:"prTitle" yaml:"prTitle"`
	PRDescription   string           `json:"prDescription" yaml:"prDescription"` // markdown
	Summary         string           `json:"summary" yaml:"summary"`
	Vulnerabilities []Vulnerability  `json:"vulnerabilities" yaml:"vulnerabilities"`
	Files           []RefactoredFile `json:"files" yaml:"files"`

	TokensUsed      int  `json:"tokensUsed" yaml:"tokensUsed"`
	TokensEstimated bool `json:"tokensEstimated,omitempty" yaml:"tokensEstimated,omitempty"`
}

// File returns the refactored file with the given name.
func (r *AnalysisReport) File(name string) (RefactoredFile, bool) {
	if r == nil {
		return RefactoredFile{}, false
	}
	for _, f := range r.Files {
		if f.Filename == name {
			return f, true
		}
	}
	return RefactoredFile{}, false
}

// CountBySeverity tallies vulnerabilities per severity.
func (r *AnalysisReport) CountBySeverity() map[Severity]int {
	out := make(map[Severity]int, len(Severities))
	if r == nil {
		return out
	}
	for _, v := range r.Vulnerabilities {
		out[v.Severity]++
	}
	return out
}

// Persistence --------------------------------------------------------------------

// PlanRecord is the document written by the plan persistence gateway.
type PlanRecord struct {
	ID                 string `json:"id" yaml:"id"`
	Repo               string `json:"repo" yaml:"repo"`
	Title              string `json:"title" yaml:"title"`
	VulnerabilityCount int    `json:"vulnerabilityCount" yaml:"vulnerabilityCount"`
	Timestamp          string `json:"timestamp" yaml:"timestamp"` // RFC 3339
}
