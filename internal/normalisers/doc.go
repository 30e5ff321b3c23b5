// Package normalisers holds content normalisation helpers used by
// connectors before text reaches the sink.
package normalisers
