package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fundus-dev/fundus/pkg/api"
)

// reindexPageSize bounds how many uploads are loaded per page during a
// full reindex.
const reindexPageSize = 100

// Reindex re-runs the post-persistence stages for one upload from its
// stored bytes. Returns storage.ErrNotFound if the upload does not exist.
func (p *Pipeline) Reindex(ctx context.Context, uploadID string) (api.IndexingStatus, error) {
	up, err := p.store.GetUpload(ctx, uploadID)
	if err != nil {
		return api.IndexingStatus{}, err
	}

	data, err := p.files.Read(up.StoragePath)
	if err != nil {
		// The metadata row exists but the bytes are gone; record that as
		// an extraction failure rather than dropping the upload.
		st := stageFailed(StageExtracted, fmt.Errorf("reading stored bytes: %w", err))
		p.updateStatus(ctx, uploadID, st)
		return st, nil
	}

	st := p.runStages(ctx, up, data)
	p.updateStatus(ctx, uploadID, st)
	return st, nil
}

// ReindexAll re-runs indexing for every stored upload and summarizes the
// outcome. Individual failures do not stop the run.
func (p *Pipeline) ReindexAll(ctx context.Context) (api.ReindexResponse, error) {
	resp := api.ReindexResponse{}

	offset := 0
	for {
		page, hasMore, err := p.store.ListUploads(ctx, reindexPageSize, offset)
		if err != nil {
			return resp, fmt.Errorf("listing uploads: %w", err)
		}

		for _, up := range page {
			if err := ctx.Err(); err != nil {
				return resp, err
			}
			st, err := p.Reindex(ctx, up.ID)
			if err != nil {
				st = stageFailed(StageExtracted, err)
			}
			resp.Statuses = append(resp.Statuses, st)
			if st.Success {
				resp.Reindexed++
			} else {
				resp.Failed++
			}
		}

		if !hasMore {
			break
		}
		offset += reindexPageSize
	}

	return resp, nil
}

func (p *Pipeline) updateStatus(ctx context.Context, uploadID string, st api.IndexingStatus) {
	if err := p.store.UpdateIndexing(ctx, uploadID, st); err != nil {
		slog.Warn("recording indexing status failed", "upload_id", uploadID, "error", err)
	}
}
