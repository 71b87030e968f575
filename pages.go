package main

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

// splitPages cuts text into pages of at most limit characters, preferring
// line boundaries. Pages are cut from the end of the text backwards so the
// last page is always full of the most recent lines.
func splitPages(text string, limit int) []string {
	if limit < 1 {
		limit = 1
	}
	rest := []rune(strings.TrimSpace(text))

	var pages []string
	for len(rest) > limit {
		cut := len(rest) - limit
		if rest[cut-1] != '\n' {
			if nl := indexRune(rest[cut:], '\n'); nl >= 0 {
				cut += nl + 1
			}
		}
		pages = append(pages, string(rest[cut:]))
		rest = trimRightRunes(rest[:cut], " \n")
	}
	pages = append(pages, string(rest))

	for i, j := 0, len(pages)-1; i < j; i, j = i+1, j-1 {
		pages[i], pages[j] = pages[j], pages[i]
	}
	return pages
}

func indexRune(rs []rune, r rune) int {
	for i, c := range rs {
		if c == r {
			return i
		}
	}
	return -1
}

func trimRightRunes(rs []rune, cutset string) []rune {
	end := len(rs)
	for end > 0 && strings.ContainsRune(cutset, rs[end-1]) {
		end--
	}
	return rs[:end]
}

// PageViewer is a cursor over a fixed set of pages. It starts on the last
// page.
type PageViewer struct {
	pages   []string
	current int
}

func newPageViewer(pages []string) *PageViewer {
	if len(pages) == 0 {
		pages = []string{""}
	}
	return &PageViewer{pages: pages, current: len(pages) - 1}
}

// loadPageViewer reads a log file in full and splits it.
func loadPageViewer(path string, limit int) (*PageViewer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read log %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		data = []byte(strings.ToValidUTF8(string(data), "�"))
	}
	return newPageViewer(splitPages(string(data), limit)), nil
}

func (v *PageViewer) Prev() {
	if v.current > 0 {
		v.current--
	}
}

func (v *PageViewer) Next() {
	if v.current < len(v.pages)-1 {
		v.current++
	}
}

func (v *PageViewer) Content() string { return v.pages[v.current] }
func (v *PageViewer) Index() int      { return v.current }
func (v *PageViewer) Count() int      { return len(v.pages) }
func (v *PageViewer) First() bool     { return v.current == 0 }
func (v *PageViewer) Last() bool      { return v.current == len(v.pages)-1 }
