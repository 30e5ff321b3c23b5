// Package domain contains the core business entities for quarry.
// These types have no external dependencies and represent the
// vocabulary of the ingestion pipeline: items discovered from a
// source, documents handed to the content sink, ledger records
// tracking checksums and versions, and run outcomes.
package domain
