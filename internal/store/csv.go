package store

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-finder/internal/model"
)

// csvHeader is the column layout of result files.
var csvHeader = []string{"organization", "website", "email", "method"}

// CSVSink appends result rows to a CSV file. Each Record is flushed and
// synced to disk before it returns.
type CSVSink struct {
	path string

	mu sync.Mutex
	f  *os.File
	w  *csv.Writer
}

// NewCSVSink opens path for appending, creating it with a header row when
// it does not exist or is empty.
func NewCSVSink(path string) (*CSVSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, eris.Wrapf(err, "csv: open %s", path)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, eris.Wrapf(err, "csv: stat %s", path)
	}

	s := &CSVSink{path: path, f: f, w: csv.NewWriter(f)}
	if info.Size() == 0 {
		if err := s.writeDurable([][]string{csvHeader}); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return s, nil
}

// Record implements Sink.
func (s *CSVSink) Record(ctx context.Context, org model.Organization, emails []string, method model.Method) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "csv: record")
	}
	rows := rowsFor(org, emails, method)
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{r.Organization, r.Website, r.Email, string(r.Method)})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return eris.New("csv: sink closed")
	}
	return s.writeDurable(records)
}

func (s *CSVSink) writeDurable(records [][]string) error {
	if err := s.w.WriteAll(records); err != nil {
		return eris.Wrapf(err, "csv: write %s", s.path)
	}
	if err := s.f.Sync(); err != nil {
		return eris.Wrapf(err, "csv: sync %s", s.path)
	}
	return nil
}

// Recorded implements Sink.
func (s *CSVSink) Recorded(ctx context.Context) (map[string]bool, error) {
	rows, err := s.Rows(ctx)
	if err != nil {
		return nil, err
	}
	done := make(map[string]bool, len(rows))
	for _, r := range rows {
		done[r.Organization] = true
	}
	return done, nil
}

// Rows implements Reader.
func (s *CSVSink) Rows(_ context.Context) ([]Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.Open(s.path)
	if err != nil {
		return nil, eris.Wrapf(err, "csv: open %s", s.path)
	}
	defer f.Close() //nolint:errcheck
	return ReadCSVResults(f)
}

// Close implements Sink.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	s.w.Flush()
	err := errors.Join(s.w.Error(), s.f.Close())
	s.f = nil
	return eris.Wrap(err, "csv: close")
}

// headerAliases maps accepted column names to Row fields. Older result
// files used "agency"/"name" and "emails".
var headerAliases = map[string]string{
	"organization": "organization",
	"agency":       "organization",
	"agency name":  "organization",
	"name":         "organization",
	"company":      "organization",
	"website":      "website",
	"url":          "website",
	"email":        "email",
	"emails":       "email",
	"method":       "method",
}

// ReadCSVResults parses a result file. The first row must be a header with
// at least an organization and an email column. A cell holding several
// addresses separated by ";" or "," yields one row per address.
func ReadCSVResults(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "csv: read header")
	}

	idx := map[string]int{}
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if field, ok := headerAliases[h]; ok {
			if _, dup := idx[field]; !dup {
				idx[field] = i
			}
		}
	}
	if _, ok := idx["organization"]; !ok {
		return nil, eris.New("csv: missing organization column")
	}
	if _, ok := idx["email"]; !ok {
		return nil, eris.New("csv: missing email column")
	}

	cell := func(rec []string, field string) string {
		i, ok := idx[field]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var rows []Row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "csv: read row")
		}
		base := Row{
			Organization: cell(rec, "organization"),
			Website:      cell(rec, "website"),
		}
		if m, ok := model.ParseMethod(cell(rec, "method")); ok {
			base.Method = m
		}
		addrs := splitEmails(cell(rec, "email"))
		if len(addrs) == 0 {
			if base.Method == "" {
				base.Method = model.MethodNone
			}
			rows = append(rows, base)
			continue
		}
		for _, a := range addrs {
			row := base
			row.Email = a
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func splitEmails(cell string) []string {
	fields := strings.FieldsFunc(cell, func(r rune) bool {
		return r == ';' || r == ',' || r == ' '
	})
	out := fields[:0]
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
