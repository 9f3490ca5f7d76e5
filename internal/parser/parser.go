// Package parser turns stored API payloads into observation tables.
//
// The expected payload is a JSON document holding an array of flat records
// (by default under "data"). Every record must carry the dataset's declared
// fields, and any column named after a dataset dimension must hold a code the
// catalog knows. A code the catalog does not know is schema drift: the API
// has started serving values the catalog has not caught up with.
package parser

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/roach88/statfetch/internal/catalog"
	"github.com/roach88/statfetch/internal/engine"
	"github.com/roach88/statfetch/internal/fingerprint"
)

// DefaultRecordsPath is where records live in a payload.
const DefaultRecordsPath = "data"

// Kind classifies a parse failure.
type Kind string

const (
	KindMalformed   Kind = "malformed"
	KindSchemaDrift Kind = "schema_drift"
)

// Error is a payload that could not be turned into a Table.
type Error struct {
	Kind    Kind
	Record  int // -1 when the failure is not tied to one record
	Field   string
	Value   string
	Message string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Record >= 0 {
		msg += fmt.Sprintf(" (record %d", e.Record)
		if e.Field != "" {
			msg += fmt.Sprintf(", field %q", e.Field)
		}
		if e.Value != "" {
			msg += fmt.Sprintf(", value %q", e.Value)
		}
		msg += ")"
	}
	return msg
}

// IsSchemaDrift reports whether err is a schema drift failure.
func IsSchemaDrift(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == KindSchemaDrift
}

// IsMalformed reports whether err is a malformed payload failure.
func IsMalformed(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == KindMalformed
}

// Observation is one record of a payload.
type Observation struct {
	Record int
	Fields map[string]string
}

// Table is the parsed payload of one request.
type Table struct {
	Dataset     string
	Fingerprint fingerprint.Fingerprint
	Request     string
	Params      map[string]string
	Rows        []Observation
}

// JSON parses payloads with gjson.
type JSON struct {
	catalog     *catalog.Catalog
	recordsPath string
}

var _ engine.Parser = (*JSON)(nil)

// New returns a JSON parser that checks records against cat.
func New(cat *catalog.Catalog) *JSON {
	return &JSON{catalog: cat, recordsPath: DefaultRecordsPath}
}

// WithRecordsPath returns a copy reading records from a different gjson path.
func (p *JSON) WithRecordsPath(path string) *JSON {
	cp := *p
	cp.recordsPath = path
	return &cp
}

// Parse returns a *Table.
func (p *JSON) Parse(req engine.Request, body []byte) (any, error) {
	ds, err := p.catalog.Dataset(req.Dataset())
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, &Error{Kind: KindMalformed, Record: -1, Message: "payload is not valid JSON"}
	}
	records := gjson.GetBytes(body, p.recordsPath)
	if !records.IsArray() {
		return nil, &Error{Kind: KindMalformed, Record: -1, Message: fmt.Sprintf("payload has no %q array", p.recordsPath)}
	}

	table := &Table{
		Dataset:     ds.Name,
		Fingerprint: req.Fingerprint(),
		Request:     req.String(),
		Params:      req.Params(),
	}

	var parseErr error
	records.ForEach(func(_, rec gjson.Result) bool {
		i := len(table.Rows)
		row, err := parseRecord(ds, i, rec)
		if err != nil {
			parseErr = err
			return false
		}
		table.Rows = append(table.Rows, row)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return table, nil
}

func parseRecord(ds *catalog.Dataset, i int, rec gjson.Result) (Observation, error) {
	if !rec.IsObject() {
		return Observation{}, &Error{Kind: KindMalformed, Record: i, Message: "record is not an object"}
	}

	fields := make(map[string]string)
	rec.ForEach(func(k, v gjson.Result) bool {
		if v.Type == gjson.Null {
			fields[k.String()] = ""
		} else {
			fields[k.String()] = v.String()
		}
		return true
	})

	for _, f := range ds.Fields {
		if _, ok := fields[f]; !ok {
			return Observation{}, &Error{Kind: KindSchemaDrift, Record: i, Field: f, Message: "missing field"}
		}
	}
	for _, dim := range ds.Params {
		code, ok := fields[dim.Name]
		if !ok {
			continue
		}
		if _, known := dim.Lookup(code); !known {
			return Observation{}, &Error{Kind: KindSchemaDrift, Record: i, Field: dim.Name, Value: code, Message: "unknown code"}
		}
	}
	return Observation{Record: i, Fields: fields}, nil
}
