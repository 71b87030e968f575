package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
)

// ErrMalformedStore is returned when a store file holds something other than
// a JSON object.
var ErrMalformedStore = errors.New("store is not a JSON object")

// jsonStore is a JSON-object file read and written whole. Callers re-read
// before any decision that depends on the current content.
type jsonStore struct {
	mu     sync.Mutex
	path   string
	indent string
	doc    map[string]json.RawMessage
}

// openJSONStore opens (creating if needed) the store at path. An empty file
// is initialised to {}. Missing top-level keys are filled from defaults.
func openJSONStore(path string, defaults map[string]any) (*jsonStore, error) {
	s := &jsonStore{path: path, indent: "  ", doc: map[string]json.RawMessage{}}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read store %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		if err := s.writeLocked(); err != nil {
			return nil, err
		}
	} else if err := s.readLocked(); err != nil {
		return nil, err
	}

	if len(defaults) == 0 {
		return s, nil
	}
	changed := false
	for key, def := range defaults {
		if raw, ok := s.doc[key]; ok && !isJSONNull(raw) {
			continue
		}
		b, err := json.Marshal(def)
		if err != nil {
			return nil, fmt.Errorf("encode default %q: %w", key, err)
		}
		s.doc[key] = b
		changed = true
	}
	if changed {
		if err := s.writeLocked(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func isJSONNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

// read reloads the whole document from disk.
func (s *jsonStore) read() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

func (s *jsonStore) readLocked() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read store %s: %w", s.path, err)
	}
	doc := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%s: %w: %v", s.path, ErrMalformedStore, err)
	}
	s.doc = doc
	return nil
}

func (s *jsonStore) writeLocked() error {
	data, err := json.MarshalIndent(s.doc, "", s.indent)
	if err != nil {
		return fmt.Errorf("encode store %s: %w", s.path, err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write store %s: %w", s.path, err)
	}
	return os.Rename(tmp, s.path)
}

// get decodes key into v. It reports false when the key is absent.
func (s *jsonStore) get(key string, v any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(key, v)
}

func (s *jsonStore) getLocked(key string, v any) (bool, error) {
	raw, ok := s.doc[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("decode %q: %w", key, err)
	}
	return true, nil
}

func (s *jsonStore) setLocked(key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	s.doc[key] = b
	return nil
}

// keys returns the top-level keys in sorted order.
func (s *jsonStore) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.doc))
	for k := range s.doc {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// update re-reads the file, applies fn and writes the result back, all under
// the store lock. Nothing is written when fn fails.
func (s *jsonStore) update(fn func(tx *storeTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.readLocked(); err != nil {
		return err
	}
	if err := fn(&storeTx{s: s}); err != nil {
		// Drop the partial edits.
		if rerr := s.readLocked(); rerr != nil {
			logWarn("store: reload after failed update", "path", s.path, "error", rerr)
		}
		return err
	}
	return s.writeLocked()
}

// view re-reads the file and runs fn under the store lock.
func (s *jsonStore) view(fn func(tx *storeTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.readLocked(); err != nil {
		return err
	}
	return fn(&storeTx{s: s})
}

// storeTx exposes locked access to the document inside update/view.
type storeTx struct {
	s *jsonStore
}

func (tx *storeTx) get(key string, v any) (bool, error) { return tx.s.getLocked(key, v) }
func (tx *storeTx) set(key string, v any) error          { return tx.s.setLocked(key, v) }
func (tx *storeTx) delete(key string)                    { delete(tx.s.doc, key) }

func (tx *storeTx) keys() []string {
	out := make([]string, 0, len(tx.s.doc))
	for k := range tx.s.doc {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// --- Snowflakes ---

// Snowflake is a Discord identifier. Files written by older versions of the
// bot hold ids as JSON numbers, so both numbers and strings are accepted.
type Snowflake string

func (s *Snowflake) UnmarshalJSON(data []byte) error {
	v, isNull, err := decodeSnowflake(data)
	if err != nil {
		return err
	}
	if isNull {
		*s = ""
		return nil
	}
	*s = Snowflake(v)
	return nil
}

func (s Snowflake) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// IDList is a list of snowflakes; null entries are dropped.
type IDList []string

func (l *IDList) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	out := make(IDList, 0, len(raws))
	for _, raw := range raws {
		v, isNull, err := decodeSnowflake(raw)
		if err != nil {
			return err
		}
		if !isNull {
			out = append(out, v)
		}
	}
	*l = out
	return nil
}

func (l IDList) contains(id string) bool {
	for _, v := range l {
		if v == id {
			return true
		}
	}
	return false
}

func decodeSnowflake(raw []byte) (value string, isNull bool, err error) {
	t := strings.TrimSpace(string(raw))
	switch {
	case t == "null":
		return "", true, nil
	case strings.HasPrefix(t, `"`):
		var s string
		if err := json.Unmarshal([]byte(t), &s); err != nil {
			return "", false, err
		}
		return s, false, nil
	default:
		var n json.Number
		if err := json.Unmarshal([]byte(t), &n); err != nil {
			return "", false, fmt.Errorf("invalid id %s: %w", t, err)
		}
		return n.String(), false, nil
	}
}
