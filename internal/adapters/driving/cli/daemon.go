package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quarrylabs/quarry-cli/internal/core/services"
	"github.com/quarrylabs/quarry-cli/internal/logger"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run scheduled ingestion until interrupted",
	Long: `Starts the scheduler. Sources with a schedule run at their
configured interval; sources that support change notifications also
trigger early runs. Stops cleanly on SIGINT or SIGTERM.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	if ingestor == nil || store == nil {
		return errors.New("scheduler not configured")
	}

	scheduled := 0
	for _, src := range ingestor.Sources() {
		if src.Schedule > 0 {
			scheduled++
		}
	}
	if scheduled == 0 {
		cmd.Println("No sources have a schedule. Nothing to do.")
		return nil
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	scheduler := services.NewScheduler(ingestor.Sources(), store.SchedulerStore(), ingestor, registry)

	cmd.Printf("Scheduler running with %d scheduled source(s). Press Ctrl+C to stop.\n", scheduled)
	return scheduler.Start(ctx)
}
