package integration

import (
	"net/http"
	"testing"

	"github.com/fundus-dev/fundus/pkg/api"
)

func TestReindexSingleUpload(t *testing.T) {
	ur := uploadFile(t, "changelog.txt",
		"changelog for the storage service including the new compaction strategy")

	resp := postJSON(t, testEnv.BaseURL()+"/v1/reindex", api.ReindexRequest{UploadID: ur.UploadID})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reindex status = %d, body: %s", resp.StatusCode, readBody(t, resp))
	}

	var rr api.ReindexResponse
	decodeBody(t, resp, &rr)
	if rr.Reindexed != 1 || rr.Failed != 0 {
		t.Errorf("summary = %+v", rr)
	}

	// The document stays searchable after reindexing.
	sresp := postJSON(t, testEnv.BaseURL()+"/v1/search",
		api.SearchRequest{Text: "storage compaction strategy changelog"})
	defer sresp.Body.Close()

	var sr api.SearchResponse
	decodeBody(t, sresp, &sr)
	found := false
	for _, r := range sr.Results {
		if r.UploadID == ur.UploadID {
			found = true
		}
	}
	if !found {
		t.Errorf("upload %s not searchable after reindex", ur.UploadID)
	}
}

func TestReindexUnknownUpload(t *testing.T) {
	resp := postJSON(t, testEnv.BaseURL()+"/v1/reindex", api.ReindexRequest{UploadID: "up_does_not_exist"})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestReindexAll(t *testing.T) {
	uploadFile(t, "runbook-a.txt", "runbook for failing over the primary region")

	resp := postJSON(t, testEnv.BaseURL()+"/v1/reindex", api.ReindexRequest{All: true})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body: %s", resp.StatusCode, readBody(t, resp))
	}

	var rr api.ReindexResponse
	decodeBody(t, resp, &rr)
	if rr.Reindexed < 1 {
		t.Errorf("Reindexed = %d, want at least 1", rr.Reindexed)
	}
	if rr.Failed != 0 {
		t.Errorf("Failed = %d, statuses: %+v", rr.Failed, rr.Statuses)
	}
}
