// Package store persists discovery results. Every sink is append-only and
// makes each record durable before Record returns, so a crashed batch can
// resume from what was written.
package store

import (
	"context"
	"strings"

	"github.com/sells-group/contact-finder/internal/model"
)

// Sink receives one record per organization.
type Sink interface {
	// Record stores the emails found for org. An empty list is stored as a
	// single row without email so the organization counts as processed.
	Record(ctx context.Context, org model.Organization, emails []string, method model.Method) error
	// Recorded returns the names of organizations already stored.
	Recorded(ctx context.Context) (map[string]bool, error)
	Close() error
}

// Reader lists stored rows. All sinks in this package implement it.
type Reader interface {
	Rows(ctx context.Context) ([]Row, error)
}

// Row is one stored (organization, email) pair. Email is empty for an
// organization with no emails.
type Row struct {
	Organization string       `json:"organization" yaml:"organization"`
	Website      string       `json:"website,omitempty" yaml:"website,omitempty"`
	Email        string       `json:"email,omitempty" yaml:"email,omitempty"`
	Method       model.Method `json:"method" yaml:"method"`
}

// rowsFor expands a record into rows. Emails are canonicalized and
// deduplicated; method is forced to none when there are none.
func rowsFor(org model.Organization, emails []string, method model.Method) []Row {
	res := model.NewResult(org, org.Website, emails, method)
	if len(res.Emails) == 0 {
		return []Row{{Organization: org.Name, Website: org.Website, Method: model.MethodNone}}
	}
	rows := make([]Row, 0, len(res.Emails))
	for _, e := range res.Emails {
		rows = append(rows, Row{Organization: org.Name, Website: org.Website, Email: e, Method: res.Method})
	}
	return rows
}

// Emails returns the non-empty emails of rows.
func Emails(rows []Row) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		if e := strings.TrimSpace(r.Email); e != "" {
			out = append(out, e)
		}
	}
	return out
}
