package source

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-finder/internal/model"
)

// CSV reads organizations from a delimited file with a header row.
type CSV struct {
	path string
}

// NewCSV creates a CSV source. Files ending in .tsv are tab-separated.
func NewCSV(path string) *CSV {
	return &CSV{path: path}
}

// Records implements Source.
func (c *CSV) Records(ctx context.Context) (<-chan model.Organization, <-chan error) {
	out := make(chan model.Organization, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		f, err := os.Open(c.path)
		if err != nil {
			errCh <- eris.Wrapf(err, "source: open %s", c.path)
			return
		}
		defer f.Close() //nolint:errcheck

		if err := c.stream(ctx, f, out); err != nil {
			errCh <- err
		}
	}()
	return out, errCh
}

func (c *CSV) stream(ctx context.Context, r io.Reader, out chan<- model.Organization) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	if strings.EqualFold(filepath.Ext(c.path), ".tsv") {
		reader.Comma = '\t'
	}

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return c.parseError(err)
	}
	cols, err := mapHeader(header)
	if err != nil {
		return &ParseError{Path: c.path, Line: 1, Err: err}
	}

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return c.parseError(err)
		}
		select {
		case out <- cols.organization(row):
		case <-ctx.Done():
			return eris.Wrap(ctx.Err(), "source: csv cancelled")
		}
	}
}

func (c *CSV) parseError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &ParseError{Path: c.path, Line: pe.Line, Column: pe.Column, Err: pe.Err}
	}
	return eris.Wrapf(err, "source: read %s", c.path)
}
