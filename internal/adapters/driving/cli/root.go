package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quarrylabs/quarry-cli/internal/adapters/driven/config/file"
	"github.com/quarrylabs/quarry-cli/internal/adapters/driven/embedding/ollama"
	"github.com/quarrylabs/quarry-cli/internal/adapters/driven/storage/sqlite"
	"github.com/quarrylabs/quarry-cli/internal/chunker"
	"github.com/quarrylabs/quarry-cli/internal/connectors/directory"
	"github.com/quarrylabs/quarry-cli/internal/connectors/gcs"
	"github.com/quarrylabs/quarry-cli/internal/connectors/issues"
	"github.com/quarrylabs/quarry-cli/internal/connectors/mediawiki"
	"github.com/quarrylabs/quarry-cli/internal/connectors/searchapi"
	"github.com/quarrylabs/quarry-cli/internal/core/domain"
	"github.com/quarrylabs/quarry-cli/internal/core/ports/driven"
	"github.com/quarrylabs/quarry-cli/internal/core/services"
	"github.com/quarrylabs/quarry-cli/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Shared services wired in setup and used by the commands.
var (
	store    *sqlite.Store
	ingestor *services.Ingestor
	registry *services.SourceRegistry
)

var (
	flagConfig  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "quarry",
	Short: "Ingest content from external sources into local storage",
	Long: `Quarry discovers content in configured sources (directories,
wikis, buckets, issue trackers), deduplicates it against previous
runs, and stores chunked documents with a version ledger.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRunE: func(*cobra.Command, []string) error {
		if store != nil {
			return store.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default ~/.quarry/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable verbose logging")
}

// Execute runs the CLI. It is the single entry point used by main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup loads configuration and wires the storage, sink and ingestion
// services every command shares.
func setup(cmd *cobra.Command, _ []string) error {
	// version needs no config or storage
	if cmd.Name() == "version" {
		return nil
	}

	cfg, err := file.Load(flagConfig)
	if err != nil {
		return err
	}

	logger.SetVerbose(flagVerbose || cfg.Verbose)

	store, err = sqlite.NewStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}

	chunkSize := cfg.Sink.ChunkSize
	if chunkSize <= 0 {
		chunkSize = chunker.DefaultChunkSize
	}
	chunkOverlap := cfg.Sink.ChunkOverlap
	if chunkOverlap <= 0 {
		chunkOverlap = chunker.DefaultChunkOverlap
	}

	var embedder driven.EmbeddingService
	if cfg.Embedding.Provider == "ollama" {
		embedder = ollama.NewEmbeddingService(ollama.Config{
			BaseURL: cfg.Embedding.BaseURL,
			Model:   cfg.Embedding.Model,
		})
	}

	sources, err := cfg.SourceConfigs()
	if err != nil {
		return err
	}

	registry = newRegistry()
	ingestor = services.NewIngestor(sources, registry, store.Tracker(), store.Sink(chunkSize, chunkOverlap, embedder))

	return nil
}

// newRegistry registers every built-in connector type.
func newRegistry() *services.SourceRegistry {
	r := services.NewSourceRegistry()
	r.Register(directory.Type, func(cfg domain.SourceConfig) (driven.Source, error) {
		return directory.New(cfg)
	})
	r.Register(mediawiki.Type, func(cfg domain.SourceConfig) (driven.Source, error) {
		return mediawiki.New(cfg)
	})
	r.Register(gcs.Type, func(cfg domain.SourceConfig) (driven.Source, error) {
		return gcs.New(cfg)
	})
	r.Register(issues.Type, func(cfg domain.SourceConfig) (driven.Source, error) {
		return issues.New(cfg)
	})
	r.Register(searchapi.Type, func(cfg domain.SourceConfig) (driven.Source, error) {
		return searchapi.New(cfg)
	})
	return r
}
