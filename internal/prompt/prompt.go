// Package prompt renders the analysis request sent to the model.
package prompt

import (
	"bytes"
	"fmt"
	"strings"

	"archaeologist/internal/types"
)

// SystemInstruction is sent alongside every analysis request.
const SystemInstruction = `You are "The Legacy Code Archaeologist", a world-class DevOps and Security Refactoring Agent.
Your mission is to analyze legacy codebases (specifically Python 2.7), identify critical security vulnerabilities (OWASP Top 10), and generate a complete modernization plan to Python 3.12+.
You utilize a massive context window to understand global dependencies.

You MUST return the response in valid JSON format matching the specified schema.`

const preamble = "Here is the legacy codebase content:\n\n"

// Steps are the analysis tasks appended after the file listing.
var Steps = []string{
	"Identify security vulnerabilities (e.g., SQL injection, pickle usage, obsolete libs).",
	"Refactor the code to Python 3.12 (add type hints, remove python 2 syntax like 'print', replace insecure libs).",
	"Provide a summary of the modernization.",
	"Write a pull request title and a markdown pull request description for the change set.",
}

// Build concatenates every file, in input order, behind a "--- FILE: name ---"
// header and appends the fixed task list. The output depends only on files.
func Build(files []types.SourceFile) string {
	var buf bytes.Buffer
	buf.WriteString(preamble)
	for _, f := range files {
		writeFile(&buf, f)
	}
	buf.WriteString("Analyze these files.\n")
	buf.WriteString(formatSteps(Steps))
	return buf.String()
}

// header returns the delimiter line written before a file's content.
func header(name string) string {
	return "--- FILE: " + name + " ---"
}

func writeFile(buf *bytes.Buffer, f types.SourceFile) {
	buf.WriteString(header(f.Name))
	buf.WriteString("\n")
	buf.WriteString(f.Content)
	buf.WriteString("\n\n")
}

func formatSteps(items []string) string {
	var buf strings.Builder
	n := 0
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		n++
		fmt.Fprintf(&buf, "%d. %s\n", n, item)
	}
	return buf.String()
}
