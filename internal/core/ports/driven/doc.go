// Package driven defines the outbound ports of the ingestion core:
// the interfaces it depends on but does not implement. Connectors,
// storage adapters and embedding services plug in behind these.
package driven
