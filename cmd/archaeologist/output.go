package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"archaeologist/internal/diff"
	"archaeologist/internal/types"
	"archaeologist/internal/util/jsonutil"
	"archaeologist/internal/util/markdown"
)

func writeReport(w io.Writer, format string, rep *types.AnalysisReport, withDiff bool, width int) error {
	switch format {
	case "json":
		b, err := jsonutil.MarshalNoEscapeIndent(rep)
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rep); err != nil {
			return err
		}
		return enc.Close()
	default:
		return writeText(w, rep, withDiff, width)
	}
}

func writeText(w io.Writer, rep *types.AnalysisReport, withDiff bool, width int) error {
	fmt.Fprintf(w, "%s\n%s\n\n", rep.PRTitle, strings.Repeat("=", len([]rune(rep.PRTitle))))
	fmt.Fprintf(w, "%s\n\n", rep.Summary)

	counts := rep.CountBySeverity()
	fmt.Fprintf(w, "Vulnerabilities (%d)\n", len(rep.Vulnerabilities))
	if len(rep.Vulnerabilities) > 0 {
		parts := make([]string, 0, len(types.Severities))
		for _, sev := range types.Severities {
			if n := counts[sev]; n > 0 {
				parts = append(parts, fmt.Sprintf("%s=%d", sev, n))
			}
		}
		fmt.Fprintf(w, "  %s\n", strings.Join(parts, " "))
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "  SEVERITY\tTYPE\tLOCATION\tDESCRIPTION")
		for _, v := range rep.Vulnerabilities {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", v.Severity, v.Kind, v.Location, v.Description)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintf(w, "\nFiles (%d)\n", len(rep.Files))
	for _, f := range rep.Files {
		rows := diff.Compare(f.OriginalContent, f.NewContent)
		st := diff.Summarize(rows)
		fmt.Fprintf(w, "  %s (%d changed lines)\n", f.Filename, st.Changed)
		for _, note := range f.ChangeNotes {
			fmt.Fprintf(w, "    - %s\n", note)
		}
		if withDiff {
			fmt.Fprintln(w)
			if err := diff.Render(w, rows, width); err != nil {
				return err
			}
			fmt.Fprintln(w)
		}
	}

	fmt.Fprintf(w, "\nPull request description\n\n%s\n", markdown.Clean(rep.PRDescription))
	tokens := fmt.Sprintf("%d", rep.TokensUsed)
	if rep.TokensEstimated {
		tokens = "~" + tokens + " (estimated)"
	}
	fmt.Fprintf(w, "\nTokens used: %s\n", tokens)
	return nil
}
