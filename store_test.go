package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenJSONStore_CreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "store.json")

	s, err := openJSONStore(path, nil)
	require.NoError(t, err)
	assert.Empty(t, s.keys())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))
}

func TestOpenJSONStore_EmptyFileInitialised(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o644))

	_, err := openJSONStore(path, nil)
	require.NoError(t, err)

	data, _ := os.ReadFile(path)
	assert.JSONEq(t, `{}`, string(data))
}

func TestOpenJSONStore_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	require.NoError(t, os.WriteFile(path, []byte("not json at all"), 0o644))

	_, err := openJSONStore(path, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedStore))
}

func TestOpenJSONStore_FillsMissingDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"a": 5, "b": null}`), 0o644))

	s, err := openJSONStore(path, map[string]any{"a": 1, "b": "x", "c": []string{}})
	require.NoError(t, err)

	var a int
	var b string
	var c []string
	_, err = s.get("a", &a)
	require.NoError(t, err)
	_, err = s.get("b", &b)
	require.NoError(t, err)
	found, err := s.get("c", &c)
	require.NoError(t, err)

	assert.Equal(t, 5, a, "existing keys are kept")
	assert.Equal(t, "x", b, "null keys are filled")
	assert.True(t, found)
	assert.Empty(t, c)

	// Persisted.
	data, _ := os.ReadFile(path)
	assert.JSONEq(t, `{"a":5,"b":"x","c":[]}`, string(data))
}

func TestJSONStore_UpdateRereadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	s, err := openJSONStore(path, nil)
	require.NoError(t, err)

	// Written behind the store's back.
	require.NoError(t, os.WriteFile(path, []byte(`{"external": true}`), 0o644))

	require.NoError(t, s.update(func(tx *storeTx) error {
		return tx.set("mine", 1)
	}))

	assert.Equal(t, []string{"external", "mine"}, s.keys())
}

func TestJSONStore_UpdateErrorSkipsWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	s, err := openJSONStore(path, nil)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.update(func(tx *storeTx) error {
		tx.set("k", 1)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	data, _ := os.ReadFile(path)
	assert.JSONEq(t, `{}`, string(data))
}

func TestSnowflake_AcceptsNumbersAndStrings(t *testing.T) {
	var ids IDList
	require.NoError(t, json.Unmarshal([]byte(`[123456789012345678, "42", null]`), &ids))
	assert.Equal(t, IDList{"123456789012345678", "42"}, ids)
	assert.True(t, ids.contains("42"))
	assert.False(t, ids.contains("7"))

	var s Snowflake
	require.NoError(t, json.Unmarshal([]byte(`987`), &s))
	assert.Equal(t, Snowflake("987"), s)

	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, `"987"`, string(out))
}
