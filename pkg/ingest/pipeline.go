// Package ingest implements the document ingestion pipeline: persist the
// upload, then best-effort extract, chunk, embed, and index it.
//
// Persistence is the only stage that can fail an upload. Every later
// stage failure is recorded in the upload's indexing status instead, so
// the file is never lost and can be reindexed once the failing
// collaborator recovers.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fundus-dev/fundus/pkg/api"
	"github.com/fundus-dev/fundus/pkg/chunker"
	"github.com/fundus-dev/fundus/pkg/debug"
	"github.com/fundus-dev/fundus/pkg/embedding"
	"github.com/fundus-dev/fundus/pkg/index"
	"github.com/fundus-dev/fundus/pkg/observability"
	"github.com/fundus-dev/fundus/pkg/storage"
)

// Pipeline stage names recorded in IndexingStatus.StageFailed.
const (
	StageExtracted = "extracted"
	StageChunked   = "chunked"
	StageEmbedded  = "embedded"
	StageIndexed   = "indexed"
)

// Logical collection bases. The full collection name also carries the
// deployment prefix and the embedding model tag.
const (
	FilenameCollectionBase = "uploads"
	ContentCollectionBase  = "uploads-content"
)

// Config wires a Pipeline.
type Config struct {
	Store      storage.Store
	Files      FileStore
	Extractors []Extractor // default: PlainText only
	Chunker    *chunker.Chunker
	Provider   embedding.Provider
	Index      index.Index

	// CollectionPrefix namespaces collections per deployment.
	CollectionPrefix string

	// ContentEnabled controls content indexing. Filename indexing always
	// runs; disabling content keeps uploads discoverable by name only.
	ContentEnabled bool

	Limits  api.ValidationConfig
	Metrics *observability.Metrics
}

// Pipeline runs uploads through persist -> extract -> chunk -> embed -> index.
type Pipeline struct {
	store      storage.Store
	files      FileStore
	extractors []Extractor
	chunker    *chunker.Chunker
	provider   embedding.Provider
	idx        index.Index

	filenameCollection string
	contentCollection  string
	contentEnabled     bool

	limits  api.ValidationConfig
	metrics *observability.Metrics
}

// New creates an ingestion pipeline. Collection names are fixed at
// construction from the provider's model tag.
func New(cfg Config) *Pipeline {
	extractors := cfg.Extractors
	if len(extractors) == 0 {
		extractors = []Extractor{PlainText{}}
	}

	tag := cfg.Provider.ModelTag()
	return &Pipeline{
		store:              cfg.Store,
		files:              cfg.Files,
		extractors:         extractors,
		chunker:            cfg.Chunker,
		provider:           cfg.Provider,
		idx:                cfg.Index,
		filenameCollection: index.CollectionName(cfg.CollectionPrefix, FilenameCollectionBase, tag),
		contentCollection:  index.CollectionName(cfg.CollectionPrefix, ContentCollectionBase, tag),
		contentEnabled:     cfg.ContentEnabled,
		limits:             cfg.Limits,
		metrics:            cfg.Metrics,
	}
}

// Collections returns the filename and content collection names in use.
func (p *Pipeline) Collections() (filename, content string) {
	return p.filenameCollection, p.contentCollection
}

// Ingest persists a new upload and runs the indexing stages. The returned
// upload carries the indexing outcome; an error is returned only when the
// file could not be persisted at all.
func (p *Pipeline) Ingest(ctx context.Context, filename, contentType string, data []byte) (*api.Upload, error) {
	if apiErr := api.ValidateUpload(filename, int64(len(data)), p.limits); apiErr != nil {
		return nil, apiErr
	}

	id := api.NewUploadID()

	path, err := p.files.Save(id, filename, data)
	if err != nil {
		return nil, fmt.Errorf("persisting upload: %w", err)
	}

	up := &api.Upload{
		ID:          id,
		Filename:    filename,
		StoragePath: path,
		SizeBytes:   int64(len(data)),
		ContentType: contentType,
		CreatedAt:   time.Now().UTC(),
	}
	if err := p.store.SaveUpload(ctx, up); err != nil {
		return nil, fmt.Errorf("saving upload record: %w", err)
	}

	up.Indexing = p.runStages(ctx, up, data)
	if err := p.store.UpdateIndexing(ctx, id, up.Indexing); err != nil {
		slog.Warn("recording indexing status failed", "upload_id", id, "error", err)
	}

	p.metrics.RecordUpload(up.Indexing.Success)
	if !up.Indexing.Success {
		slog.Warn("upload stored but not fully indexed",
			"upload_id", id, "stage", up.Indexing.StageFailed, "error", up.Indexing.Error)
	}
	return up, nil
}

// runStages executes the best-effort stages after persistence and reports
// how far they got.
func (p *Pipeline) runStages(ctx context.Context, up *api.Upload, data []byte) api.IndexingStatus {
	// Extract. An unsupported file type skips content indexing but is not
	// a failure; the filename is still searchable.
	var contentChunks []api.Chunk
	if p.contentEnabled {
		text, err := extractText(p.extractors, up.Filename, up.ContentType, data)
		switch {
		case errors.Is(err, ErrUnsupportedType):
			slog.Info("content indexing skipped", "upload_id", up.ID, "content_type", up.ContentType)
		case err != nil:
			return stageFailed(StageExtracted, err)
		default:
			contentChunks = p.chunker.ContentChunks(up.ID, text)
		}
	}

	filenameChunk := p.chunker.FilenameChunk(up.ID, up.Filename)
	all := make([]api.Chunk, 0, 1+len(contentChunks))
	all = append(all, filenameChunk)
	all = append(all, contentChunks...)

	// Chunk text is persisted before any network stage so the keyword
	// fallback works even when embedding or indexing fails below.
	if err := p.store.ReplaceChunks(ctx, up.ID, all); err != nil {
		return stageFailed(StageChunked, err)
	}

	// Embed filename and content in one batch.
	texts := make([]string, len(all))
	for i, c := range all {
		texts[i] = c.Text
	}
	vectors, err := p.provider.Embed(ctx, texts)
	if err != nil {
		return stageFailed(StageEmbedded, err)
	}
	p.metrics.RecordEmbeddings(p.provider.ModelTag(), len(texts))
	debug.Log("ingest", "chunks embedded",
		"upload_id", up.ID, "chunks", len(all), "content_chunks", len(contentChunks))

	if err := p.writeIndex(ctx, up, all, vectors); err != nil {
		return stageFailed(StageIndexed, err)
	}

	return api.IndexingStatus{Success: true, ChunksIndexed: len(all)}
}

// writeIndex ensures both collections and replaces the upload's points.
func (p *Pipeline) writeIndex(ctx context.Context, up *api.Upload, chunks []api.Chunk, vectors [][]float32) error {
	dims := p.provider.Dimensions()
	createdAt := up.CreatedAt.Format(time.RFC3339Nano)

	var filenamePoints, contentPoints []index.Point
	for i, c := range chunks {
		pt := index.Point{
			ID:     index.PointID(up.ID, string(c.ChunkType), c.ChunkIndex),
			Vector: vectors[i],
			Payload: index.Payload{
				UploadID:    up.ID,
				Filename:    up.Filename,
				ChunkIndex:  c.ChunkIndex,
				TotalChunks: c.TotalChunks,
				ChunkType:   string(c.ChunkType),
				Text:        c.Text,
				CreatedAt:   createdAt,
			},
		}
		if c.ChunkType == api.ChunkTypeFilename {
			filenamePoints = append(filenamePoints, pt)
		} else {
			contentPoints = append(contentPoints, pt)
		}
	}

	if err := p.idx.EnsureCollection(ctx, p.filenameCollection, dims); err != nil {
		return err
	}
	if err := p.idx.Upsert(ctx, p.filenameCollection, filenamePoints); err != nil {
		return err
	}

	if err := p.idx.EnsureCollection(ctx, p.contentCollection, dims); err != nil {
		return err
	}
	// Drop stale points first: a reindex can produce fewer chunks than the
	// previous run, and deterministic IDs only overwrite matching indices.
	if err := p.idx.DeleteUpload(ctx, p.contentCollection, up.ID); err != nil {
		return err
	}
	if err := p.idx.Upsert(ctx, p.contentCollection, contentPoints); err != nil {
		return err
	}

	return nil
}

func stageFailed(stage string, err error) api.IndexingStatus {
	return api.IndexingStatus{Success: false, StageFailed: stage, Error: err.Error()}
}
