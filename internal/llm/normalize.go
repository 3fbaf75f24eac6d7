package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/joseph-ayodele/docextract/internal/common"
)

// Normalize strips code fences, slices the outermost {...} span and parses it.
// Missing fields are tolerated; no schema is enforced here.
func Normalize(raw string) (Record, error) {
	text := raw
	if strings.Contains(text, "```") {
		text = strings.ReplaceAll(text, "```json", "")
		text = strings.ReplaceAll(text, "```", "")
	}

	first := strings.IndexByte(text, '{')
	last := strings.LastIndexByte(text, '}')
	if first == -1 || last == -1 || last < first {
		return nil, common.MalformedResponseError("no JSON object in response", nil)
	}
	text = text[first : last+1]

	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return nil, common.MalformedResponseError("parse JSON object", err)
	}
	// trailing garbage inside the span means we sliced two objects together
	if dec.More() {
		return nil, common.MalformedResponseError("parse JSON object", errors.New("unexpected data after object"))
	}
	if rec == nil {
		return nil, common.MalformedResponseError("parse JSON object", errors.New("null object"))
	}
	return rec, nil
}

// Canonical re-encodes a record deterministically (sorted keys) for storage.
func Canonical(rec Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
