package api

import "time"

// ChunkType distinguishes the two kinds of indexed text units.
type ChunkType string

const (
	// ChunkTypeFilename marks the single chunk carrying an upload's name.
	ChunkTypeFilename ChunkType = "filename"

	// ChunkTypeContent marks chunks produced from extracted document text.
	ChunkTypeContent ChunkType = "content"
)

// SearchMode identifies which retrieval strategy served a request.
// Scores are not comparable across modes, so every search response
// reports the mode it was served in.
type SearchMode string

const (
	ModeVector  SearchMode = "vector"
	ModeKeyword SearchMode = "keyword"
)

// Upload is the durable record of a persisted file. It is created once,
// when the file bytes and metadata row have been written, and is immutable
// afterwards except for the attached indexing status.
type Upload struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	StoragePath string    `json:"storage_path"`
	SizeBytes   int64     `json:"size_bytes"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`

	// Indexing reflects the outcome of the most recent indexing attempt.
	Indexing IndexingStatus `json:"indexing"`
}

// IndexingStatus reports how far the ingestion pipeline got past the
// Persisted stage. A false Success with a StageFailed of "extracted",
// "chunked", "embedded", or "indexed" means the file is stored but not
// fully searchable.
type IndexingStatus struct {
	Success       bool   `json:"success"`
	StageFailed   string `json:"stage_failed,omitempty"`
	Error         string `json:"error,omitempty"`
	ChunksIndexed int    `json:"chunks_indexed,omitempty"`
}

// Chunk is a bounded text unit derived from an upload. chunk_index is a
// dense 0-based sequence per (upload_id, chunk_type) and TotalChunks is
// constant across all chunks of that pair.
type Chunk struct {
	UploadID    string    `json:"upload_id"`
	ChunkIndex  int       `json:"chunk_index"`
	TotalChunks int       `json:"total_chunks"`
	ChunkType   ChunkType `json:"chunk_type"`
	Text        string    `json:"text"`
}

// SearchResult is a single ranked hit. It is constructed per query and
// never persisted. VectorScore carries the similarity from the vector
// index (or the keyword match score in keyword mode); RerankScore and
// RRFScore are set only when the corresponding stage ran.
type SearchResult struct {
	UploadID    string    `json:"upload_id"`
	Filename    string    `json:"filename"`
	ChunkIndex  int       `json:"chunk_index"`
	ChunkType   ChunkType `json:"chunk_type"`
	Snippet     string    `json:"chunk_text"`
	VectorScore float32   `json:"vector_score"`
	RerankScore *float32  `json:"rerank_score,omitempty"`
	RRFScore    *float32  `json:"rrf_score,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ChatLog is an append-only record of a conversational exchange. The
// conversational layer owns writes; it lives here because the metadata
// store's durability contract is shared infrastructure.
type ChatLog struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Provider  string    `json:"provider"`
	Response  string    `json:"response"`
	CreatedAt time.Time `json:"created_at"`
}

// SearchRequest is the body of POST /v1/search.
type SearchRequest struct {
	Text   string `json:"text"`
	Limit  int    `json:"limit,omitempty"`
	Rerank *bool  `json:"rerank,omitempty"`
}

// SearchResponse is the reply for POST /v1/search.
type SearchResponse struct {
	Query   string         `json:"query"`
	Mode    SearchMode     `json:"mode"`
	Results []SearchResult `json:"results"`
}

// AdvancedSearchRequest is the body of POST /v1/search/advanced.
type AdvancedSearchRequest struct {
	Text  string `json:"text"`
	Limit int    `json:"limit,omitempty"`
}

// AdvancedSearchResponse is the reply for POST /v1/search/advanced. It
// reports the query variants that contributed to the fused ranking.
type AdvancedSearchResponse struct {
	Query         string         `json:"query"`
	Mode          SearchMode     `json:"mode"`
	Results       []SearchResult `json:"results"`
	QueryVariants []string       `json:"query_variants"`
}

// UploadResponse is the reply for POST /v1/uploads.
type UploadResponse struct {
	UploadID  string         `json:"upload_id"`
	Filename  string         `json:"filename"`
	SizeBytes int64          `json:"size_bytes"`
	Indexing  IndexingStatus `json:"indexing"`
}

// UploadList is a paginated listing of uploads. NextOffset is -1 when
// no further page exists.
type UploadList struct {
	Items      []Upload `json:"items"`
	NextOffset int      `json:"next_offset"`
}

// ReindexRequest selects what to reindex: a single upload by ID, or
// everything when All is set.
type ReindexRequest struct {
	UploadID string `json:"upload_id,omitempty"`
	All      bool   `json:"all,omitempty"`
}

// ReindexResponse summarizes a reindex run.
type ReindexResponse struct {
	Reindexed int              `json:"reindexed"`
	Failed    int              `json:"failed"`
	Statuses  []IndexingStatus `json:"statuses,omitempty"`
}
