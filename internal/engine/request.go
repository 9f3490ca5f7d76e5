package engine

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/statfetch/internal/catalog"
	"github.com/roach88/statfetch/internal/fingerprint"
	"github.com/roach88/statfetch/internal/journal"
)

// Layout maps requests and journals onto the data directory:
//
//	<root>/<dataset>/download/<fingerprint>.json
//	<root>/<dataset>/download/history.log
//	<root>/<dataset>/load/history.log
type Layout struct {
	Root string
}

// PayloadPath returns where the fetched body for fp is stored.
func (l Layout) PayloadPath(dataset string, fp fingerprint.Fingerprint) string {
	return filepath.Join(l.Root, dataset, string(journal.ModeDownload), string(fp)+".json")
}

// JournalPath returns the history file for a dataset and mode.
func (l Layout) JournalPath(dataset string, mode journal.Mode) string {
	return journal.Path(l.Root, dataset, mode)
}

// OpenHistory reads the journal for a dataset and mode.
func (l Layout) OpenHistory(dataset string, mode journal.Mode) (*journal.History, error) {
	h, err := journal.Open(l.JournalPath(dataset, mode), mode)
	if err != nil {
		return nil, &RuntimeError{Code: ErrCodeJournal, Message: "journal unreadable", Dataset: dataset, Err: err}
	}
	return h, nil
}

// Request is one fully parameterized unit of work. It is immutable: the
// accessors return copies.
type Request struct {
	dataset string
	names   []string
	params  map[string]string
	fp      fingerprint.Fingerprint
	path    string
}

// NewRequest validates params against ds and derives the fingerprint and
// payload path. A missing, extra or unknown parameter is a schema mismatch
// and no Request is produced.
func NewRequest(ds *catalog.Dataset, params map[string]string, layout Layout) (Request, error) {
	if err := ds.Validate(params); err != nil {
		return Request{}, NewSchemaMismatchError(ds.Name, err)
	}
	fp, err := fingerprint.Of(ds.Name, params)
	if err != nil {
		return Request{}, NewSchemaMismatchError(ds.Name, err)
	}
	return Request{
		dataset: ds.Name,
		names:   ds.ParamNames(),
		params:  maps.Clone(params),
		fp:      fp,
		path:    layout.PayloadPath(ds.Name, fp),
	}, nil
}

// Dataset returns the dataset name.
func (r Request) Dataset() string { return r.dataset }

// Fingerprint returns the request identity.
func (r Request) Fingerprint() fingerprint.Fingerprint { return r.fp }

// Path returns the payload location.
func (r Request) Path() string { return r.path }

// Params returns a copy of the parameter assignment.
func (r Request) Params() map[string]string { return maps.Clone(r.params) }

// Param returns one parameter value.
func (r Request) Param(name string) (string, bool) {
	v, ok := r.params[name]
	return v, ok
}

// String renders the request as dataset{name=value,...} in declaration order.
func (r Request) String() string {
	var b strings.Builder
	b.WriteString(r.dataset)
	b.WriteByte('{')
	for i, name := range r.names {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(r.params[name])
	}
	b.WriteByte('}')
	return b.String()
}

// Load reads the stored payload and hands it to p, synchronously. It does
// not touch any journal; queue runs go through Engine.Load.
func (r Request) Load(p Parser) (any, error) {
	body, err := r.read()
	if err != nil {
		return nil, err
	}
	return p.Parse(r, body)
}

func (r Request) read() ([]byte, error) {
	body, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return body, nil
}
