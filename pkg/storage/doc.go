// Package storage defines the metadata store contract shared by the
// ingestion pipeline, the search engine, and the HTTP transport, plus
// sentinel errors common to all adapter implementations.
//
// Two adapters implement the Store interface: memory (tests and
// lightweight deployments) and postgres (durable deployments). Raw
// upload bytes live on disk; the store holds upload metadata, chunk
// text for keyword fallback, and chat logs.
package storage
