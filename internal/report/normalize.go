// Package report turns the untyped generation payload into a typed
// AnalysisReport, or explains why it cannot.
package report

import (
	"bytes"
	"errors"
	"fmt"

	"archaeologist/internal/llm"
	"archaeologist/internal/schema"
	"archaeologist/internal/types"
	"archaeologist/internal/util/jsonutil"
)

// wire mirrors the response contract with pointer fields so that absent and
// null values can be told apart from empty ones.
type wireReport struct {
	PRTitle         *string      `json:"prTitle"`
	PRDescription   *string      `json:"prDescription"`
	Summary         *string      `json:"summary"`
	Vulnerabilities *[]*wireVuln `json:"vulnerabilities"`
	Files           *[]*wireFile `json:"files"`
}

type wireVuln struct {
	Severity    *string `json:"severity"`
	Type        *string `json:"type"`
	Description *string `json:"description"`
	Location    *string `json:"location"`
}

type wireFile struct {
	Filename        *string   `json:"filename"`
	OriginalContent *string   `json:"originalContent"`
	NewContent      *string   `json:"newContent"`
	ChangesSummary  *[]string `json:"changesSummary"`
}

var errNotObject = errors.New("payload is not a JSON object")

// Options tunes Normalize. The zero value trims and upper-cases severities.
type Options struct {
	// StrictSeverity accepts only the exact enum spellings.
	StrictSeverity bool
}

// Normalize validates resp.Raw and builds the report. Unknown fields are
// ignored. Severity is trimmed and upper-cased before it is checked against
// the closed set. TokensUsed comes from provider usage when available and
// otherwise from the length estimate over prompt and payload.
func Normalize(resp llm.Response, prompt string) (*types.AnalysisReport, error) {
	return NormalizeWith(resp, prompt, Options{})
}

// NormalizeWith is Normalize with explicit options.
func NormalizeWith(resp llm.Response, prompt string, opts Options) (*types.AnalysisReport, error) {
	raw := jsonutil.StripCodeFence(resp.Raw)
	if len(raw) == 0 {
		return nil, &MalformedResponseError{Err: errors.New("empty payload")}
	}
	var w wireReport
	if err := jsonutil.UnmarshalFlex(raw, &w); err != nil {
		return nil, &MalformedResponseError{Err: err}
	}
	if bytes.Equal(raw, []byte("null")) {
		return nil, &MalformedResponseError{Err: errNotObject}
	}

	v := &validator{strictSeverity: opts.StrictSeverity}
	out := &types.AnalysisReport{
		PRTitle:       v.str(schema.FieldPRTitle, w.PRTitle),
		PRDescription: v.str(schema.FieldPRDescription, w.PRDescription),
		Summary:       v.str(schema.FieldSummary, w.Summary),
	}

	if w.Vulnerabilities == nil {
		v.missing(schema.FieldVulnerabilities)
	} else {
		out.Vulnerabilities = make([]types.Vulnerability, 0, len(*w.Vulnerabilities))
		for i, wv := range *w.Vulnerabilities {
			out.Vulnerabilities = append(out.Vulnerabilities, v.vuln(i, wv))
		}
	}

	if w.Files == nil {
		v.missing(schema.FieldFiles)
	} else {
		out.Files = make([]types.RefactoredFile, 0, len(*w.Files))
		seen := make(map[string]int, len(*w.Files))
		for i, wf := range *w.Files {
			f := v.file(i, wf)
			if wf != nil && wf.Filename != nil {
				if first, dup := seen[f.Filename]; dup {
					v.problem(fmt.Sprintf("%s[%d].%s: duplicate of %s[%d]",
						schema.FieldFiles, i, schema.FieldFilename, schema.FieldFiles, first))
				} else {
					seen[f.Filename] = i
				}
			}
			out.Files = append(out.Files, f)
		}
	}

	if len(v.problems) > 0 {
		return nil, &MalformedResponseError{Problems: v.problems}
	}

	out.TokensUsed, out.TokensEstimated = tokens(resp, prompt)
	return out, nil
}

func tokens(resp llm.Response, prompt string) (int, bool) {
	if resp.Usage != nil && resp.Usage.TotalTokens > 0 {
		return resp.Usage.TotalTokens, false
	}
	return llm.EstimateTokens(prompt, string(resp.Raw)), true
}

type validator struct {
	strictSeverity bool
	problems       []string
}

func (v *validator) problem(msg string) { v.problems = append(v.problems, msg) }

func (v *validator) missing(path string) { v.problem(path + ": required field missing") }

func (v *validator) str(path string, p *string) string {
	if p == nil {
		v.missing(path)
		return ""
	}
	return *p
}

func (v *validator) vuln(i int, wv *wireVuln) types.Vulnerability {
	prefix := fmt.Sprintf("%s[%d]", schema.FieldVulnerabilities, i)
	if wv == nil {
		v.problem(prefix + ": null entry")
		return types.Vulnerability{}
	}
	out := types.Vulnerability{
		Kind:        v.str(prefix+"."+schema.FieldKind, wv.Type),
		Description: v.str(prefix+"."+schema.FieldDescription, wv.Description),
		Location:    v.str(prefix+"."+schema.FieldLocation, wv.Location),
	}
	raw := v.str(prefix+"."+schema.FieldSeverity, wv.Severity)
	if wv.Severity != nil {
		sev, ok := types.ParseSeverity(raw)
		if v.strictSeverity && string(sev) != raw {
			ok = false
		}
		if !ok {
			v.problem(fmt.Sprintf("%s.%s: unknown severity %q", prefix, schema.FieldSeverity, raw))
		}
		out.Severity = sev
	}
	return out
}

func (v *validator) file(i int, wf *wireFile) types.RefactoredFile {
	prefix := fmt.Sprintf("%s[%d]", schema.FieldFiles, i)
	if wf == nil {
		v.problem(prefix + ": null entry")
		return types.RefactoredFile{}
	}
	out := types.RefactoredFile{
		Filename:        v.str(prefix+"."+schema.FieldFilename, wf.Filename),
		OriginalContent: v.str(prefix+"."+schema.FieldOriginalContent, wf.OriginalContent),
		NewContent:      v.str(prefix+"."+schema.FieldNewContent, wf.NewContent),
	}
	if wf.ChangesSummary == nil {
		v.missing(prefix + "." + schema.FieldChangesSummary)
	} else {
		out.ChangeNotes = append([]string{}, (*wf.ChangesSummary)...)
	}
	return out
}
