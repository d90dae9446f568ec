package report

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archaeologist/internal/llm"
	"archaeologist/internal/types"
)

const validPayload = `{
  "prTitle": "Modernize app to Python 3.12",
  "prDescription": "## Changes\n- print()",
  "summary": "One injection fixed.",
  "vulnerabilities": [
    {"severity": "HIGH", "type": "SQL Injection", "description": "string formatting in query", "location": "app.py:12"}
  ],
  "files": [
    {"filename": "app.py", "originalContent": "print \"hi\"", "newContent": "print(\"hi\")", "changesSummary": ["print()"]},
    {"filename": "utils.py", "originalContent": "", "newContent": "", "changesSummary": []}
  ]
}`

func mutate(t *testing.T, fn func(m map[string]any)) llm.Response {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(validPayload), &m))
	fn(m)
	b, err := json.Marshal(m)
	require.NoError(t, err)
	return llm.Response{Raw: b}
}

func TestNormalizeValid(t *testing.T) {
	got, err := Normalize(llm.Response{Raw: json.RawMessage(validPayload), Usage: &llm.Usage{TotalTokens: 1234}}, "prompt")
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	want := &types.AnalysisReport{
		PRTitle:       "Modernize app to Python 3.12",
		PRDescription: "## Changes\n- print()",
		Summary:       "One injection fixed.",
		Vulnerabilities: []types.Vulnerability{
			{Severity: types.SeverityHigh, Kind: "SQL Injection", Description: "string formatting in query", Location: "app.py:12"},
		},
		Files: []types.RefactoredFile{
			{Filename: "app.py", OriginalContent: `print "hi"`, NewContent: `print("hi")`, ChangeNotes: []string{"print()"}},
			{Filename: "utils.py", ChangeNotes: []string{}},
		},
		TokensUsed: 1234,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Normalize() mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeMissingSummary(t *testing.T) {
	resp := mutate(t, func(m map[string]any) { delete(m, "summary") })
	_, err := Normalize(resp, "p")
	require.Error(t, err)
	var me *MalformedResponseError
	assert.ErrorAs(t, err, &me)
	assert.Contains(t, err.Error(), "summary: required field missing")
}

func TestNormalizeNestedFieldMissing(t *testing.T) {
	resp := mutate(t, func(m map[string]any) {
		files := m["files"].([]any)
		delete(files[1].(map[string]any), "newContent")
	})
	_, err := Normalize(resp, "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "files[1].newContent: required field missing")
}

func TestNormalizeNullArrayIsMissing(t *testing.T) {
	resp := mutate(t, func(m map[string]any) { m["vulnerabilities"] = nil })
	_, err := Normalize(resp, "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vulnerabilities: required field missing")
}

func TestNormalizeEmptyArraysAreValid(t *testing.T) {
	resp := mutate(t, func(m map[string]any) {
		m["vulnerabilities"] = []any{}
		m["files"] = []any{}
	})
	got, err := Normalize(resp, "p")
	require.NoError(t, err)
	assert.Empty(t, got.Vulnerabilities)
	assert.NotNil(t, got.Vulnerabilities)
	assert.Empty(t, got.Files)
}

func TestNormalizeStrictSeverity(t *testing.T) {
	for _, in := range []string{"high", " HIGH", "High"} {
		resp := mutate(t, func(m map[string]any) {
			v := m["vulnerabilities"].([]any)
			v[0].(map[string]any)["severity"] = in
		})
		_, err := NormalizeWith(resp, "p", Options{StrictSeverity: true})
		require.Error(t, err, in)
		assert.Contains(t, err.Error(), "unknown severity")
	}

	got, err := NormalizeWith(llm.Response{Raw: json.RawMessage(validPayload)}, "p", Options{StrictSeverity: true})
	require.NoError(t, err)
	assert.Equal(t, types.SeverityHigh, got.Vulnerabilities[0].Severity)
}

func TestNormalizeSeverity(t *testing.T) {
	cases := []struct {
		in      string
		want    types.Severity
		wantErr bool
	}{
		{in: "CRITICAL", want: types.SeverityCritical},
		{in: " low ", want: types.SeverityLow},
		{in: "Medium", want: types.SeverityMedium},
		{in: "URGENT", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			resp := mutate(t, func(m map[string]any) {
				v := m["vulnerabilities"].([]any)
				v[0].(map[string]any)["severity"] = tc.in
			})
			got, err := Normalize(resp, "p")
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "unknown severity")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.Vulnerabilities[0].Severity)
		})
	}
}

func TestNormalizeDuplicateFilename(t *testing.T) {
	resp := mutate(t, func(m map[string]any) {
		files := m["files"].([]any)
		files[1].(map[string]any)["filename"] = "app.py"
	})
	_, err := Normalize(resp, "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "files[1].filename: duplicate of files[0]")
}

func TestNormalizeIgnoresUnknownFields(t *testing.T) {
	resp := mutate(t, func(m map[string]any) {
		m["confidence"] = 0.9
		v := m["vulnerabilities"].([]any)
		v[0].(map[string]any)["cwe"] = "CWE-89"
	})
	_, err := Normalize(resp, "p")
	require.NoError(t, err)
}

func TestNormalizeRejectsNonObjects(t *testing.T) {
	for _, raw := range []string{"", "   ", "not json", "[]", "42", "null", `"text"`} {
		_, err := Normalize(llm.Response{Raw: json.RawMessage(raw)}, "p")
		if err == nil {
			t.Fatalf("Normalize(%q) error = nil, want malformed", raw)
		}
		var me *MalformedResponseError
		if !errors.As(err, &me) {
			t.Fatalf("Normalize(%q) error = %T, want *MalformedResponseError", raw, err)
		}
	}
}

func TestNormalizeWrongTypeIsMalformed(t *testing.T) {
	resp := mutate(t, func(m map[string]any) { m["summary"] = 7 })
	_, err := Normalize(resp, "p")
	var me *MalformedResponseError
	assert.ErrorAs(t, err, &me)
}

func TestNormalizeAcceptsFencedPayload(t *testing.T) {
	raw := "```json\n" + validPayload + "\n```"
	_, err := Normalize(llm.Response{Raw: json.RawMessage(raw)}, "p")
	require.NoError(t, err)
}

func TestNormalizeEstimatesTokensWithoutUsage(t *testing.T) {
	prompt := strings.Repeat("x", 400)
	got, err := Normalize(llm.Response{Raw: json.RawMessage(validPayload)}, prompt)
	require.NoError(t, err)
	assert.True(t, got.TokensEstimated)
	assert.Equal(t, (len(prompt)+len(validPayload))/llm.CharsPerToken, got.TokensUsed)
	assert.GreaterOrEqual(t, got.TokensUsed, 0)
}

func TestNormalizeReportsEveryProblem(t *testing.T) {
	resp := mutate(t, func(m map[string]any) {
		delete(m, "prTitle")
		delete(m, "summary")
	})
	_, err := Normalize(resp, "p")
	var me *MalformedResponseError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, []string{
		"prTitle: required field missing",
		"summary: required field missing",
	}, me.Problems)
}
