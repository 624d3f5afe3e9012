package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const timePrecision = 10 * time.Millisecond

// newRunCmd creates the 'run' subcommand, which executes one crawl from the
// command line and prints a summary of the outcome.
func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [keyword ...]",
		Short: "Runs one crawl and exits",
		Long: `Executes a single crawl for the given keywords. Keywords passed as
arguments override the crawler.keywords list from the configuration.`,

		RunE: runRunCommand,
	}
	return cmd
}

func runRunCommand(cmd *cobra.Command, args []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.Logger()

	opts := appInstance.Config().RunOptions()
	if len(args) > 0 {
		opts.Keywords = args
	}
	if len(opts.Keywords) == 0 {
		return errors.New("no keywords given; pass them as arguments or set crawler.keywords")
	}

	rec, result, err := appInstance.Runner().Execute(cmd.Context(), opts)
	if err != nil {
		return fmt.Errorf("execute run: %w", err)
	}

	logger.Info("run finished",
		zap.String("run_id", rec.RunID.String()),
		zap.String("status", string(rec.Status)),
		zap.Int64("total_pages", result.Stats.TotalPages),
		zap.Int64("unique_items", result.Stats.UniqueItems),
		zap.Int64("details_fetched", result.Stats.DetailsFetched),
		zap.Duration("duration", result.Duration),
	)
	if rec.ArchiveURI != "" {
		logger.Info("run output archived", zap.String("uri", rec.ArchiveURI))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d posts from %d keywords (%s)\n",
		rec.RunID, len(result.Posts), len(opts.Keywords), result.Duration.Round(timePrecision))
	return nil
}
