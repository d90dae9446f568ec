package schema

import (
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	genai "google.golang.org/genai"

	"archaeologist/internal/types"
)

// derived fields are computed after validation and never requested from the model.
var derived = map[string]bool{"tokensUsed": true, "tokensEstimated": true}

func jsonFields(t *testing.T, v any) []string {
	t.Helper()
	rt := reflect.TypeOf(v)
	out := make([]string, 0, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		tag := strings.Split(rt.Field(i).Tag.Get("json"), ",")[0]
		if tag == "" || tag == "-" || derived[tag] {
			continue
		}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

func propertyNames(s *genai.Schema) []string {
	out := make([]string, 0, len(s.Properties))
	for k := range s.Properties {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sorted(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

func TestReportSchemaMatchesDataModel(t *testing.T) {
	s := ReportSchema()
	require.Equal(t, genai.TypeObject, s.Type)
	assert.Equal(t, jsonFields(t, types.AnalysisReport{}), propertyNames(s))
	assert.Equal(t, propertyNames(s), sorted(s.Required), "every report field is required")

	vuln := s.Properties[FieldVulnerabilities]
	require.NotNil(t, vuln)
	require.Equal(t, genai.TypeArray, vuln.Type)
	require.NotNil(t, vuln.Items)
	assert.Equal(t, jsonFields(t, types.Vulnerability{}), propertyNames(vuln.Items))
	assert.Equal(t, propertyNames(vuln.Items), sorted(vuln.Items.Required))

	files := s.Properties[FieldFiles]
	require.NotNil(t, files)
	require.NotNil(t, files.Items)
	assert.Equal(t, jsonFields(t, types.RefactoredFile{}), propertyNames(files.Items))
	assert.Equal(t, propertyNames(files.Items), sorted(files.Items.Required))
	assert.Equal(t, genai.TypeArray, files.Items.Properties[FieldChangesSummary].Type)
}

func TestSeverityEnumIsClosedSet(t *testing.T) {
	sev := ReportSchema().Properties[FieldVulnerabilities].Items.Properties[FieldSeverity]
	assert.Equal(t, []string{"CRITICAL", "HIGH", "MEDIUM", "LOW"}, sev.Enum)
}

func TestReportSchemaReturnsFreshCopy(t *testing.T) {
	a := ReportSchema()
	a.Required[0] = "mutated"
	a.Properties[FieldSummary].Description = "changed"

	b := ReportSchema()
	assert.Equal(t, FieldPRTitle, b.Required[0])
	assert.Equal(t, FieldPRTitle, ReportRequired[0])
	assert.NotEqual(t, "changed", b.Properties[FieldSummary].Description)
}
