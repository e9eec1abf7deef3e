package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/contact-finder/internal/email"
	"github.com/sells-group/contact-finder/internal/model"
	"github.com/sells-group/contact-finder/internal/store"
)

var (
	cleanInput  string
	cleanOutput string
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Re-validate the emails of a result file",
	Long: `Drops addresses from a result CSV that fail the current validation rules
(media file names, noise domains, unknown TLDs, MX when enabled) and writes
the survivors to a new file. Organizations left without emails keep a row
with method "none".`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rows, err := readResultFile(cleanInput)
		if err != nil {
			return err
		}

		kept, removed := cleanRows(cmd.Context(), rows, newValidator(cfg))

		out, err := store.NewCSVSink(cleanOutput)
		if err != nil {
			return eris.Wrap(err, "clean: open output")
		}
		if err := writeRows(cmd.Context(), out, kept); err != nil {
			_ = out.Close()
			return err
		}
		if err := out.Close(); err != nil {
			return err
		}

		zap.L().Info("clean complete",
			zap.String("output", cleanOutput),
			zap.Int("kept", len(store.Emails(kept))),
			zap.Int("removed", removed),
		)
		return nil
	},
}

// cleanRows blanks the email of rows that fail v and reports how many were
// dropped. The blanked rows keep the organization in the output.
func cleanRows(ctx context.Context, rows []store.Row, v *email.Validator) ([]store.Row, int) {
	kept := make([]store.Row, 0, len(rows))
	removed := 0
	for _, r := range rows {
		if r.Email != "" && !v.Validate(ctx, r.Email) {
			removed++
			zap.L().Debug("clean: dropping email", zap.String("org", r.Organization), zap.String("email", r.Email))
			kept = append(kept, store.Row{Organization: r.Organization, Website: r.Website, Method: model.MethodNone})
			continue
		}
		kept = append(kept, r)
	}
	return kept, removed
}

// writeRows regroups rows by organization, in first-seen order, and records
// each group once.
func writeRows(ctx context.Context, sink store.Sink, rows []store.Row) error {
	type group struct {
		org    model.Organization
		emails []string
		method model.Method
	}
	var order []string
	groups := map[string]*group{}
	for _, r := range rows {
		g, ok := groups[r.Organization]
		if !ok {
			g = &group{org: model.Organization{Name: r.Organization, Website: r.Website}}
			groups[r.Organization] = g
			order = append(order, r.Organization)
		}
		if r.Email != "" {
			g.emails = append(g.emails, r.Email)
			if g.method == "" || g.method == model.MethodNone {
				g.method = r.Method
			}
		}
	}
	for _, name := range order {
		g := groups[name]
		// Legacy result files have no method column.
		if len(g.emails) > 0 && g.method == "" {
			g.method = model.MethodHomepage
		}
		if err := sink.Record(ctx, g.org, g.emails, g.method); err != nil {
			return eris.Wrapf(err, "clean: write %q", name)
		}
	}
	return nil
}

func init() {
	cleanCmd.Flags().StringVar(&cleanInput, "input", "emails_found.csv", "result CSV to clean")
	cleanCmd.Flags().StringVar(&cleanOutput, "output", "emails_found_cleaned.csv", "cleaned result CSV")
	rootCmd.AddCommand(cleanCmd)
}
