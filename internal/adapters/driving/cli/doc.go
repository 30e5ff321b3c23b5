// Package cli implements the quarry command-line interface using
// cobra. Commands are registered with the root command via init() and
// share the wired services set up by Execute.
package cli
