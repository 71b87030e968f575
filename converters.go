package main

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// pascalToSnake converts "HelloWorld" to "hello_world".
func pascalToSnake(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsUpper(r) {
			b.WriteByte('_')
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimLeft(b.String(), "_")
}

// pascalToSpace converts "HelloWorld" to "Hello World".
func pascalToSpace(s string) string {
	var b strings.Builder
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// listToTable left-aligns rows into columns separated by four spaces. The
// last column is not padded. Ragged input yields "".
func listToTable(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}
	cols := len(rows[0])
	if cols == 0 {
		return ""
	}
	widths := make([]int, cols-1)
	for _, row := range rows {
		if len(row) != cols {
			return ""
		}
		for i := 0; i < cols-1; i++ {
			if n := utf8.RuneCountInString(row[i]); n > widths[i] {
				widths[i] = n
			}
		}
	}

	const sep = "    "
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		var b strings.Builder
		for i := 0; i < cols-1; i++ {
			b.WriteString(row[i])
			b.WriteString(strings.Repeat(" ", widths[i]-utf8.RuneCountInString(row[i])))
			b.WriteString(sep)
		}
		b.WriteString(row[cols-1])
		lines = append(lines, b.String())
	}
	return strings.Join(lines, "\n")
}

// truncate cuts s to maxLen runes, marking the cut with "...".
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string([]rune(s)[:maxLen])
	}
	return string([]rune(s)[:maxLen-3]) + "..."
}
