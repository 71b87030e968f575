package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitPages(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", []string{""}},
		{"trailing newline lines", "234567890\n234567890\n234567890\n",
			[]string{"234567890", "234567890", "234567890"}},
		{"long first line", "234567890123456\n234590\n2345670",
			[]string{"23456", "7890123456", "234590", "2345670"}},
		{"short lines packed", "1234567890\n012\n3456\n23456\n7890\n2345\n670",
			[]string{"1234567890", "012\n3456", "23456\n7890", "2345\n670"}},
		{"exact lines", "1234567890\n1234567890\n1234567890\n",
			[]string{"1234567890", "1234567890", "1234567890"}},
		{"no line breaks", "123456789012345678901234567890",
			[]string{"1234567890", "1234567890", "1234567890"}},
		{"over-long line then line", "12345678901234567890\n1234567890",
			[]string{"1234567890", "1234567890", "1234567890"}},
		{"inner spaces kept", "123456  789  01234  56789012   34567890",
			[]string{"123456", "789  01234", "  56789012", "  34567890"}},
		{"trim only", "   3456   ", []string{"3456"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitPages(tt.in, 10))
		})
	}
}

func TestSplitPages_BoundsAndRoundTrip(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 200; i++ {
		b.WriteString(strings.Repeat("x", i%37))
		b.WriteString("\n")
	}
	text := b.String()

	for _, limit := range []int{1, 7, 40, 1990} {
		pages := splitPages(text, limit)
		require.NotEmpty(t, pages)
		for _, p := range pages {
			assert.LessOrEqual(t, utf8.RuneCountInString(p), limit)
		}
		joined := strings.Join(pages, "")
		want := strings.NewReplacer("\n", "").Replace(strings.TrimSpace(text))
		assert.Equal(t, want, strings.NewReplacer("\n", "").Replace(joined), "limit %d", limit)
	}
}

func TestSplitPages_CountsRunes(t *testing.T) {
	pages := splitPages("日本語日本語", 3)
	assert.Equal(t, []string{"日本語", "日本語"}, pages)
}

func TestPageViewer_Cursor(t *testing.T) {
	v := newPageViewer([]string{"a", "b", "c"})
	assert.Equal(t, 2, v.Index())
	assert.Equal(t, "c", v.Content())
	assert.True(t, v.Last())

	v.Next()
	assert.Equal(t, 2, v.Index(), "next on last page is a no-op")

	v.Prev()
	v.Prev()
	assert.True(t, v.First())
	v.Prev()
	assert.Equal(t, 0, v.Index(), "prev on first page is a no-op")
	assert.Equal(t, "a", v.Content())

	for i := 0; i < v.Count()-1; i++ {
		v.Next()
	}
	assert.Equal(t, "c", v.Content())
}

func TestLoadPageViewer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	require.NoError(t, os.WriteFile(path, []byte("line one\nline two\n"), 0o644))

	v, err := loadPageViewer(path, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, v.Count())
	assert.Equal(t, "line two", v.Content())

	_, err = loadPageViewer(filepath.Join(t.TempDir(), "missing.log"), 10)
	assert.Error(t, err)
}
