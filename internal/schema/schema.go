// Package schema declares the response contract handed to the model. Property
// names must match the json tags in internal/types; schema_test enforces that.
package schema

import (
	"slices"

	genai "google.golang.org/genai"

	"archaeologist/internal/types"
)

// Top-level report properties.
const (
	FieldPRTitle         = "prTitle"
	FieldPRDescription   = "prDescription"
	FieldSummary         = "summary"
	FieldVulnerabilities = "vulnerabilities"
	FieldFiles           = "files"
)

// Vulnerability properties.
const (
	FieldSeverity    = "severity"
	FieldKind        = "type"
	FieldDescription = "description"
	FieldLocation    = "location"
)

// Refactored file properties.
const (
	FieldFilename        = "filename"
	FieldOriginalContent = "originalContent"
	FieldNewContent      = "newContent"
	FieldChangesSummary  = "changesSummary"
)

var (
	ReportRequired        = []string{FieldPRTitle, FieldPRDescription, FieldSummary, FieldVulnerabilities, FieldFiles}
	VulnerabilityRequired = []string{FieldSeverity, FieldKind, FieldDescription, FieldLocation}
	FileRequired          = []string{FieldFilename, FieldOriginalContent, FieldNewContent, FieldChangesSummary}
)

// SeverityEnum returns the closed severity set as schema enum values.
func SeverityEnum() []string {
	out := make([]string, 0, len(types.Severities))
	for _, s := range types.Severities {
		out = append(out, string(s))
	}
	return out
}

// ReportSchema returns a fresh schema for one analysis report. Callers may
// mutate the result.
func ReportSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			FieldPRTitle:         str("Concise pull request title for the modernization."),
			FieldPRDescription:   str("Pull request body in markdown."),
			FieldSummary:         str("Executive summary of the refactoring job."),
			FieldVulnerabilities: arrayOf(vulnerabilitySchema()),
			FieldFiles:           arrayOf(fileSchema()),
		},
		PropertyOrdering: slices.Clone(ReportRequired),
		Required:         slices.Clone(ReportRequired),
	}
}

func vulnerabilitySchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			FieldSeverity:    {Type: genai.TypeString, Enum: SeverityEnum()},
			FieldKind:        {Type: genai.TypeString},
			FieldDescription: {Type: genai.TypeString},
			FieldLocation:    str("File and line number approximation"),
		},
		PropertyOrdering: slices.Clone(VulnerabilityRequired),
		Required:         slices.Clone(VulnerabilityRequired),
	}
}

func fileSchema() *genai.Schema {
	notes := arrayOf(&genai.Schema{Type: genai.TypeString})
	notes.Description = "List of specific changes made (e.g., 'Replaced pickle with json')"
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			FieldFilename:        {Type: genai.TypeString},
			FieldOriginalContent: {Type: genai.TypeString},
			FieldNewContent:      str("The complete refactored Python 3.12 code"),
			FieldChangesSummary:  notes,
		},
		PropertyOrdering: slices.Clone(FileRequired),
		Required:         slices.Clone(FileRequired),
	}
}

func str(desc string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Description: desc}
}

func arrayOf(item *genai.Schema) *genai.Schema {
	return &genai.Schema{Type: genai.TypeArray, Items: item}
}
