package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-finder/internal/model"
)

// JSON reads organizations from a JSON array of objects, e.g.
// [{"name": "...", "website": "...", "proUrl": "..."}].
type JSON struct {
	path string
}

// NewJSON creates a JSON source.
func NewJSON(path string) *JSON {
	return &JSON{path: path}
}

// jsonRecord accepts the field spellings seen in exported agency lists.
type jsonRecord struct {
	Name       string `json:"name"`
	Agency     string `json:"agency"`
	Website    string `json:"website"`
	URL        string `json:"url"`
	ProURL     string `json:"proUrl"`
	ProURLAlt  string `json:"pro_url"`
	ProfileURL string `json:"profile_url"`
}

func (r jsonRecord) organization() model.Organization {
	return model.Organization{
		Name:       firstNonEmpty(r.Name, r.Agency),
		Website:    firstNonEmpty(r.Website, r.URL),
		ProfileURL: firstNonEmpty(r.ProURL, r.ProURLAlt, r.ProfileURL),
	}
}

// Records implements Source. Malformed input is reported as a *ParseError
// with the line and column of the offending byte.
func (j *JSON) Records(ctx context.Context) (<-chan model.Organization, <-chan error) {
	out := make(chan model.Organization, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		data, err := os.ReadFile(j.path)
		if err != nil {
			errCh <- eris.Wrapf(err, "source: read %s", j.path)
			return
		}
		if err := j.stream(ctx, data, out); err != nil {
			errCh <- err
		}
	}()
	return out, errCh
}

func (j *JSON) stream(ctx context.Context, data []byte, out chan<- model.Organization) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return j.locate(data, dec, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return j.locate(data, dec, eris.Errorf("expected '[', got %v", tok))
	}

	for dec.More() {
		var rec jsonRecord
		if err := dec.Decode(&rec); err != nil {
			return j.locate(data, dec, err)
		}
		select {
		case out <- rec.organization():
		case <-ctx.Done():
			return eris.Wrap(ctx.Err(), "source: json cancelled")
		}
	}
	if _, err := dec.Token(); err != nil {
		return j.locate(data, dec, err)
	}
	return nil
}

// locate converts a decode error into a ParseError with a 1-based line and
// column. Decoder offsets are not absolute, so syntax and type errors are
// re-derived from a whole-document unmarshal.
func (j *JSON) locate(data []byte, dec *json.Decoder, err error) error {
	offset := dec.InputOffset()
	var se *json.SyntaxError
	var te *json.UnmarshalTypeError
	switch {
	case errors.As(err, &se), errors.As(err, &te):
		var all []jsonRecord
		full := json.Unmarshal(data, &all)
		switch {
		case errors.As(full, &se):
			offset = se.Offset
		case errors.As(full, &te):
			offset = te.Offset
		}
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		offset = int64(len(data))
	}
	line, col := position(data, offset)
	return &ParseError{Path: j.path, Line: line, Column: col, Err: err}
}

// position maps a byte offset to a 1-based line and column.
func position(data []byte, offset int64) (line, col int) {
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	line, col = 1, 1
	for _, b := range data[:offset] {
		if b == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
