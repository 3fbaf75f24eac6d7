package llm

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/docextract/constants"
)

// Record is a normalized provider response: a JSON object decoded with
// UseNumber, so numbers arrive as json.Number.
type Record map[string]any

// Has reports whether key holds a truthy value: non-blank string, non-zero
// number, true, or a non-empty array/object.
func (r Record) Has(key string) bool {
	return truthy(r[key])
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(t) != ""
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	case float64:
		return t != 0
	case int:
		return t != 0
	case bool:
		return t
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

// String returns the value as trimmed text; numbers are rendered verbatim.
func (r Record) String(key string) string {
	switch t := r[key].(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

// OptString is String, but nil when empty.
func (r Record) OptString(key string) *string {
	s := r.String(key)
	if s == "" {
		return nil
	}
	return &s
}

// Number coerces numbers and numeric strings ("$1,500.00") to float64.
func (r Record) Number(key string) (float64, bool) {
	switch t := r[key].(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		return parseMoney(t)
	default:
		return 0, false
	}
}

func parseMoney(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "$€£¥ ")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

// Date parses a YYYY-MM-DD value (a longer ISO timestamp is truncated). Nil
// when absent or unparseable.
func (r Record) Date(key string) *time.Time {
	s := r.String(key)
	if len(s) > 10 {
		s = s[:10]
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return nil
	}
	return &t
}

// Currency returns an upper-cased 3-letter code, defaulting to USD.
func (r Record) Currency() string {
	c := strings.ToUpper(r.String("currency"))
	if len(c) != 3 {
		return constants.DefaultCurrency
	}
	for _, ch := range c {
		if ch < 'A' || ch > 'Z' {
			return constants.DefaultCurrency
		}
	}
	return c
}

// DocumentType canonicalizes documentType onto the known categories.
func (r Record) DocumentType() constants.DocumentType {
	dt, _ := constants.CanonicalDocumentType(r.String("documentType"))
	return dt
}

// LineItems returns the object entries of lineItems; other entries are skipped.
func (r Record) LineItems() []Record {
	arr, ok := r["lineItems"].([]any)
	if !ok {
		return nil
	}
	out := make([]Record, 0, len(arr))
	for _, it := range arr {
		if m, ok := it.(map[string]any); ok {
			out = append(out, Record(m))
		}
	}
	return out
}
