// Package file provides the TOML configuration loader.
//
// Configuration lives in ~/.quarry/config.toml by default. The file is
// decoded into explicit structs and converted to domain source
// configurations before any source is constructed, so invalid entries
// are rejected up front rather than at run time.
package file
