package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/contact-finder/internal/model"
)

var (
	findName       string
	findWebsite    string
	findProfileURL string
	findFormat     string
	findRecord     bool
)

var findCmd = &cobra.Command{
	Use:   "find",
	Short: "Find contact emails for a single organization",
	Example: `  contact-finder find --name "Sunset Realty" --website sunsetrealty.es
  contact-finder find --name "Casa Luna" --format json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		org := model.Organization{Name: findName, Website: findWebsite, ProfileURL: findProfileURL}
		if org.Name == "" {
			return eris.New("--name is required")
		}

		env, err := initDiscovery(ctx, cfg, findRecord)
		if err != nil {
			return eris.Wrap(err, "find: init")
		}
		defer env.Close()

		res := env.Orchestrator.Run(ctx, org)
		if res.Err != nil {
			return eris.Wrapf(res.Err, "find %q", org.Name)
		}
		if findRecord {
			rec := org
			if res.Website != "" {
				rec.Website = res.Website
			}
			if err := env.Sink.Record(ctx, rec, res.Emails, res.Method); err != nil {
				return eris.Wrap(err, "find: record")
			}
		}
		return printResult(cmd.OutOrStdout(), res, findFormat)
	},
}

// printResult writes res as text (one email per line), json or yaml.
func printResult(w io.Writer, res model.Result, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "yaml":
		return yaml.NewEncoder(w).Encode(res)
	case "text", "":
		fmt.Fprintf(w, "%s\t%s\t%s\n", res.Organization.Name, res.Website, res.Method)
		for _, e := range res.Emails {
			fmt.Fprintln(w, e)
		}
		return nil
	}
	return eris.Errorf("unknown format %q", format)
}

func init() {
	findCmd.Flags().StringVar(&findName, "name", "", "organization name")
	findCmd.Flags().StringVar(&findWebsite, "website", "", "known website, if any")
	findCmd.Flags().StringVar(&findProfileURL, "profile-url", "", "directory profile page linking to the website")
	findCmd.Flags().StringVar(&findFormat, "format", "text", "output format: text, json or yaml")
	findCmd.Flags().BoolVar(&findRecord, "record", false, "also record the result in the configured sink")
	rootCmd.AddCommand(findCmd)
}
