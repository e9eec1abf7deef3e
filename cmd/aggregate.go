package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/contact-finder/internal/aggregate"
	"github.com/sells-group/contact-finder/internal/store"
)

var (
	aggregateFromStore bool
	aggregateFormat    string
	aggregateOutput    string
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate [results.csv ...]",
	Short: "List the unique emails across result files or the configured sink",
	Example: `  contact-finder aggregate emails_found.csv emails_found_costa.csv
  contact-finder aggregate --from-store --format json --output emails.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var lists [][]string
		if aggregateFromStore {
			sink, err := initSink(cmd.Context(), cfg.Store)
			if err != nil {
				return err
			}
			defer sink.Close() //nolint:errcheck
			reader, ok := sink.(store.Reader)
			if !ok {
				return eris.Errorf("aggregate: %s sink cannot be read", cfg.Store.Driver)
			}
			rows, err := reader.Rows(cmd.Context())
			if err != nil {
				return eris.Wrap(err, "aggregate: read sink")
			}
			lists = append(lists, store.Emails(rows))
		}
		for _, path := range args {
			rows, err := readResultFile(path)
			if err != nil {
				return err
			}
			lists = append(lists, store.Emails(rows))
		}
		if len(lists) == 0 {
			return eris.New("aggregate: pass result files or --from-store")
		}

		emails := aggregate.Emails(lists...)
		zap.L().Info("aggregated emails", zap.Int("sources", len(lists)), zap.Int("unique", len(emails)))

		w := cmd.OutOrStdout()
		if aggregateOutput != "" {
			f, err := os.Create(aggregateOutput)
			if err != nil {
				return eris.Wrapf(err, "aggregate: create %s", aggregateOutput)
			}
			defer f.Close() //nolint:errcheck
			w = f
		}
		return writeEmails(w, emails, aggregateFormat)
	},
}

func readResultFile(path string) ([]store.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open %s", path)
	}
	defer f.Close() //nolint:errcheck
	rows, err := store.ReadCSVResults(f)
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}
	return rows, nil
}

// writeEmails renders the list as text (one per line), json, yaml or a
// single-column csv.
func writeEmails(w io.Writer, emails []string, format string) error {
	switch format {
	case "text", "":
		for _, e := range emails {
			if _, err := fmt.Fprintln(w, e); err != nil {
				return err
			}
		}
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(emails)
	case "yaml":
		return yaml.NewEncoder(w).Encode(emails)
	case "csv":
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{"email"}); err != nil {
			return err
		}
		for _, e := range emails {
			if err := cw.Write([]string{e}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	}
	return eris.Errorf("unknown format %q", format)
}

func init() {
	aggregateCmd.Flags().BoolVar(&aggregateFromStore, "from-store", false, "read rows from the configured sink")
	aggregateCmd.Flags().StringVar(&aggregateFormat, "format", "text", "output format: text, json, yaml or csv")
	aggregateCmd.Flags().StringVar(&aggregateOutput, "output", "", "write to this file instead of stdout")
	rootCmd.AddCommand(aggregateCmd)
}
