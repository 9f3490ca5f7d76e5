package fingerprint

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// Canonical returns the canonical JSON document hashed for a request:
//
//	{"dataset":"<name>","params":{"<k1>":"<v1>",...}}
//
// Keys are ordered by UTF-16 code units (RFC 8785), strings are NFC
// normalized at the serialization boundary, and <, > and & are not escaped.
// An empty dataset name or parameter name is rejected.
func Canonical(dataset string, params map[string]string) ([]byte, error) {
	if dataset == "" {
		return nil, fmt.Errorf("canonical: empty dataset name")
	}

	var buf bytes.Buffer
	buf.WriteString(`{"dataset":`)
	if err := writeString(&buf, dataset); err != nil {
		return nil, fmt.Errorf("canonical: dataset: %w", err)
	}
	buf.WriteString(`,"params":{`)

	for i, k := range sortedKeys(params) {
		if k == "" {
			return nil, fmt.Errorf("canonical: empty parameter name")
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(&buf, k); err != nil {
			return nil, fmt.Errorf("canonical: key %q: %w", k, err)
		}
		buf.WriteByte(':')
		if err := writeString(&buf, params[k]); err != nil {
			return nil, fmt.Errorf("canonical: value for key %q: %w", k, err)
		}
	}

	buf.WriteString("}}")
	return buf.Bytes(), nil
}

// writeString appends s as a canonical JSON string.
func writeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return err
	}
	out := bytes.TrimSuffix(tmp.Bytes(), []byte{'\n'})
	buf.Write(unescapeLineSeparators(out))
	return nil
}

// unescapeLineSeparators turns the \u2028 and \u2029 escapes emitted by
// encoding/json back into literal characters, as RFC 8785 requires. Escape
// sequences are consumed pairwise, so an escaped backslash followed by the
// text "u2028" is left alone.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}

	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] != '\\' || i+1 >= len(data) {
			out = append(out, data[i])
			continue
		}
		if data[i+1] == 'u' && i+6 <= len(data) {
			switch string(data[i+2 : i+6]) {
			case "2028":
				out = append(out, "\u2028"...)
				i += 5
				continue
			case "2029":
				out = append(out, "\u2029"...)
				i += 5
				continue
			}
		}
		out = append(out, data[i], data[i+1])
		i++
	}
	return out
}

// sortedKeys returns the keys of m in RFC 8785 order.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

// compareUTF16 orders strings by UTF-16 code units. Go's native string
// comparison is by UTF-8 bytes, which disagrees for characters outside the
// BMP.
func compareUTF16(a, b string) int {
	return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
}
