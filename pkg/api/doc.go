// Package api defines the data model and wire types for the fundus
// retrieval service: uploads, chunks, search results, the request and
// response DTOs of the external interface, and the structured error
// taxonomy returned at the API boundary.
//
// The types here are shared by the ingestion pipeline, the search engine,
// and the transport layer. They carry no behavior beyond validation and
// ID generation.
package api
