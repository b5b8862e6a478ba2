// Package transport serves the fundus HTTP API: document uploads,
// search, reindexing, and health endpoints, plus the middleware chain
// (request ID propagation, structured logging, panic recovery) and the
// server lifecycle with graceful shutdown.
package transport
