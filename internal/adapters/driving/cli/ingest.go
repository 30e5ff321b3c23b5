package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [source]",
	Short: "Run ingestion for one source or all sources",
	Long: `Runs one ingestion pass. With a source name, only that source
is ingested; otherwise every configured source runs in turn.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestor == nil {
		return errors.New("ingestion service not configured")
	}

	ctx := cmd.Context()

	if len(args) > 0 {
		summary, err := ingestor.RunSource(ctx, args[0])
		if err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}
		cmd.Println(summary.String())
		return summary.Err
	}

	if len(ingestor.Sources()) == 0 {
		cmd.Println("No sources configured. Add [[sources]] entries to the config file.")
		return nil
	}

	summaries, err := ingestor.RunAll(ctx)
	for _, summary := range summaries {
		cmd.Println(summary.String())
	}
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	var failed []error
	for _, summary := range summaries {
		if summary.Err != nil {
			failed = append(failed, summary.Err)
		}
	}
	return errors.Join(failed...)
}
