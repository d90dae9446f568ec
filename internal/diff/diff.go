// Package diff aligns an original and a modified text line by line for
// side-by-side display. Alignment is positional: line i of one side sits next
// to line i of the other. It does not compute a minimal edit script.
package diff

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Line is one numbered line of a side. Index is 1-based; 0 marks padding.
type Line struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// Row pairs the i-th line of both sides.
type Row struct {
	Left    Line `json:"left"`
	Right   Line `json:"right"`
	Changed bool `json:"changed"`
}

// Stats summarizes an alignment.
type Stats struct {
	Left    int `json:"left"`
	Right   int `json:"right"`
	Changed int `json:"changed"`
}

// Align splits both texts on '\n' and numbers each side independently. A
// trailing '\r' is removed from every line. Empty input yields one empty line.
func Align(original, modified string) (left, right []Line) {
	return split(original), split(modified)
}

func split(s string) []Line {
	parts := strings.Split(s, "\n")
	out := make([]Line, len(parts))
	for i, p := range parts {
		out[i] = Line{Index: i + 1, Text: strings.TrimSuffix(p, "\r")}
	}
	return out
}

// Rows pairs left and right positionally. The shorter side is padded with
// empty Index 0 lines; a row is Changed when its texts differ or one side is
// padding.
func Rows(left, right []Line) []Row {
	n := max(len(left), len(right))
	out := make([]Row, n)
	for i := 0; i < n; i++ {
		var r Row
		if i < len(left) {
			r.Left = left[i]
		}
		if i < len(right) {
			r.Right = right[i]
		}
		r.Changed = r.Left.Index == 0 || r.Right.Index == 0 || r.Left.Text != r.Right.Text
		out[i] = r
	}
	return out
}

// Compare is Align followed by Rows.
func Compare(original, modified string) []Row {
	return Rows(Align(original, modified))
}

// Summarize counts lines per side and changed rows.
func Summarize(rows []Row) Stats {
	var s Stats
	for _, r := range rows {
		if r.Left.Index > 0 {
			s.Left++
		}
		if r.Right.Index > 0 {
			s.Right++
		}
		if r.Changed {
			s.Changed++
		}
	}
	return s
}

// Render writes rows as two columns. width bounds each column in runes;
// values below 8 default to 60. Changed rows carry a '~' gutter marker.
func Render(w io.Writer, rows []Row, width int) error {
	if width < 8 {
		width = 60
	}
	for _, r := range rows {
		mark := ' '
		if r.Changed {
			mark = '~'
		}
		line := fmt.Sprintf("%c %s %s | %s %s", mark, num(r.Left), cell(r.Left.Text, width), num(r.Right), clip(r.Right.Text, width))
		if _, err := io.WriteString(w, strings.TrimRight(line, " ")+"\n"); err != nil {
			return err
		}
	}
	return nil
}

func num(l Line) string {
	if l.Index == 0 {
		return "    "
	}
	return fmt.Sprintf("%4d", l.Index)
}

// cell clips s to width runes and pads it to exactly width.
func cell(s string, width int) string {
	s = clip(s, width)
	if n := utf8.RuneCountInString(s); n < width {
		s += strings.Repeat(" ", width-n)
	}
	return s
}

func clip(s string, width int) string {
	s = strings.ReplaceAll(s, "\t", "    ")
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	r := []rune(s)
	return string(r[:width-1]) + "…"
}
