// Package driving defines the inbound ports of the ingestion core:
// the interfaces through which the CLI and scheduler drive it.
package driving
