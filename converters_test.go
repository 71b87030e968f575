package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListToTable(t *testing.T) {
	tests := []struct {
		name string
		in   [][]string
		want string
	}{
		{"empty", nil, ""},
		{"one row", [][]string{{"Name", "Age", "Gender"}}, "Name    Age    Gender"},
		{"rows", [][]string{
			{"John", "25", "Male"},
			{"Jane", "30", "Female"},
			{"Sam", "40", "Male"},
		}, "John    25    Male\nJane    30    Female\nSam     40    Male"},
		{"header wider", [][]string{
			{"Name", "Age", "Gender"},
			{"John", "25", "Male"},
			{"Sam", "40", "Male"},
		}, "Name    Age    Gender\nJohn    25     Male\nSam     40     Male"},
		{"ragged", [][]string{{"a", "b"}, {"c"}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, listToTable(tt.in))
		})
	}
}

func TestPascalToSnake(t *testing.T) {
	assert.Equal(t, "", pascalToSnake(""))
	assert.Equal(t, "hello", pascalToSnake("Hello"))
	assert.Equal(t, "hello_world", pascalToSnake("HelloWorld"))
	assert.Equal(t, "hello123_world", pascalToSnake("Hello123World"))
	assert.Equal(t, "hello@_world", pascalToSnake("Hello@World"))
}

func TestPascalToSpace(t *testing.T) {
	assert.Equal(t, "", pascalToSpace(""))
	assert.Equal(t, "Hello", pascalToSpace("Hello"))
	assert.Equal(t, "Hello World", pascalToSpace("HelloWorld"))
	assert.Equal(t, "Hello123 World", pascalToSpace("Hello123World"))
	assert.Equal(t, "Hello@ World", pascalToSpace("Hello@World"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exact", truncate("exact", 5))
	assert.Equal(t, "abcd...", truncate("abcdefghij", 7))
	assert.Equal(t, "日本", truncate("日本語", 2))
}
