package source

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/contact-finder/internal/model"
)

// XLSX reads organizations from one worksheet whose first row is a header.
type XLSX struct {
	path  string
	sheet string
}

// NewXLSX creates an XLSX source. An empty sheet name selects the first
// worksheet.
func NewXLSX(path, sheet string) *XLSX {
	return &XLSX{path: path, sheet: sheet}
}

// Records implements Source.
func (x *XLSX) Records(ctx context.Context) (<-chan model.Organization, <-chan error) {
	out := make(chan model.Organization, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		f, err := xlsx.OpenFile(x.path)
		if err != nil {
			errCh <- eris.Wrapf(err, "source: open %s", x.path)
			return
		}
		sheet, err := x.pick(f)
		if err != nil {
			errCh <- err
			return
		}
		if len(sheet.Rows) == 0 {
			return
		}

		cols, err := mapHeader(rowToStrings(sheet.Rows[0]))
		if err != nil {
			errCh <- &ParseError{Path: x.path, Line: 1, Err: err}
			return
		}
		for _, row := range sheet.Rows[1:] {
			if row == nil {
				continue
			}
			select {
			case out <- cols.organization(rowToStrings(row)):
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "source: xlsx cancelled")
				return
			}
		}
	}()
	return out, errCh
}

func (x *XLSX) pick(f *xlsx.File) (*xlsx.Sheet, error) {
	if x.sheet != "" {
		sheet, ok := f.Sheet[x.sheet]
		if !ok {
			return nil, eris.Errorf("source: sheet %q not found in %s", x.sheet, x.path)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("source: %s has no sheets", x.path)
	}
	return f.Sheets[0], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
