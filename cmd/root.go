package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/contact-finder/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "contact-finder",
	Short: "Find contact emails for organizations",
	Long:  "Resolves each organization's website and walks tiered strategies (homepage, contact links, rendered pages, contact suffixes, crawl) until validated emails are found.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is normal in production.
		_ = godotenv.Load()

		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
