// Package connectors provides implementations of the Source interface
// for various content systems. Each connector knows how to enumerate
// and fetch items from a specific source type (directory, MediaWiki,
// GCS, etc.).
//
// Connectors are registered with the SourceRegistry at startup.
package connectors
