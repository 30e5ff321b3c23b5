package cli

import (
	"errors"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List configured sources",
	RunE:  runSources,
}

var sourceTypesCmd = &cobra.Command{
	Use:   "types",
	Short: "List available source types",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if registry == nil {
			return errors.New("sources not configured")
		}
		types := registry.Types()
		sort.Strings(types)
		cmd.Println(strings.Join(types, "\n"))
		return nil
	},
}

func init() {
	sourcesCmd.AddCommand(sourceTypesCmd)
	rootCmd.AddCommand(sourcesCmd)
}

func runSources(cmd *cobra.Command, _ []string) error {
	if ingestor == nil {
		return errors.New("sources not configured")
	}

	sources := ingestor.Sources()
	if len(sources) == 0 {
		cmd.Println("No sources configured.")
		return nil
	}

	for _, src := range sources {
		line := src.Name + " (" + src.Type + ")"
		if src.Schedule > 0 {
			line += " every " + src.Schedule.String()
		}
		cmd.Println(line)
	}
	return nil
}
