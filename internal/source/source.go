// Package source streams organizations from input files (CSV, JSON, XLSX).
package source

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-finder/internal/model"
)

// Source yields organizations. Both channels are closed when the source is
// exhausted; at most one error is sent, after which no more records follow.
type Source interface {
	Records(ctx context.Context) (<-chan model.Organization, <-chan error)
}

// FromFile picks a Source by file extension.
func FromFile(path string) (Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv", ".txt":
		return NewCSV(path), nil
	case ".json":
		return NewJSON(path), nil
	case ".xlsx":
		return NewXLSX(path, ""), nil
	}
	return nil, eris.Errorf("source: unsupported input %q (want .csv, .json or .xlsx)", path)
}

// Slice is an in-memory Source.
type Slice []model.Organization

// Records implements Source.
func (s Slice) Records(ctx context.Context) (<-chan model.Organization, <-chan error) {
	out := make(chan model.Organization)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)
		for _, org := range s {
			select {
			case out <- org:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "source: cancelled")
				return
			}
		}
	}()
	return out, errCh
}

// Collect drains src into a slice.
func Collect(ctx context.Context, src Source) ([]model.Organization, error) {
	recs, errs := src.Records(ctx)
	var out []model.Organization
	for org := range recs {
		out = append(out, org)
	}
	if err := <-errs; err != nil {
		return out, err
	}
	return out, nil
}

// ParseError locates a malformed input record.
type ParseError struct {
	Path   string
	Line   int
	Column int
	Err    error
}

func (e *ParseError) Error() string {
	if e.Column > 0 {
		return fmt.Sprintf("source: %s:%d:%d: %v", e.Path, e.Line, e.Column, e.Err)
	}
	return fmt.Sprintf("source: %s:%d: %v", e.Path, e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// columns holds the header positions of the organization fields; -1 when
// absent.
type columns struct {
	name, website, profile int
}

var (
	nameHeaders    = []string{"name", "names", "agency", "agency name", "company", "organization"}
	websiteHeaders = []string{"website", "url", "web", "site"}
	profileHeaders = []string{"pro_url", "prourl", "profile_url", "profile", "pro url"}
)

// mapHeader finds the organization columns in a header row.
func mapHeader(header []string) (columns, error) {
	cols := columns{name: -1, website: -1, profile: -1}
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		switch {
		case cols.name < 0 && contains(nameHeaders, h):
			cols.name = i
		case cols.website < 0 && contains(websiteHeaders, h):
			cols.website = i
		case cols.profile < 0 && contains(profileHeaders, h):
			cols.profile = i
		}
	}
	if cols.name < 0 {
		return cols, eris.Errorf("no name column in header %q", header)
	}
	return cols, nil
}

func (c columns) organization(row []string) model.Organization {
	get := func(i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	return model.Organization{
		Name:       get(c.name),
		Website:    get(c.website),
		ProfileURL: get(c.profile),
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
