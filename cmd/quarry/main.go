// Command quarry is the content ingestion CLI.
package main

import (
	"github.com/quarrylabs/quarry-cli/internal/adapters/driving/cli"
)

func main() {
	cli.Execute()
}
