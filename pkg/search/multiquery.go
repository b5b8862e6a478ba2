package search

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fundus-dev/fundus/pkg/api"
)

// VariantGenerator produces query rewrites for multi-query retrieval. The
// original query is always the first variant.
type VariantGenerator interface {
	// Variants returns up to max query strings, original included.
	Variants(query string, max int) []string
}

// stopwords dropped by the heuristic rewriter.
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true,
	"was": true, "were": true, "of": true, "in": true, "on": true,
	"for": true, "to": true, "and": true, "or": true, "with": true,
	"about": true, "does": true, "do": true, "did": true, "can": true,
	"how": true, "what": true, "which": true, "where": true, "when": true,
	"who": true, "why": true, "me": true, "my": true, "i": true,
	"please": true, "tell": true, "show": true, "find": true,
}

// HeuristicVariants rewrites queries without calling a language model:
// the original, a stopword-stripped form, and a deduplicated keyword
// form. Duplicate rewrites collapse, so short queries may produce fewer
// variants than the cap.
type HeuristicVariants struct{}

var _ VariantGenerator = HeuristicVariants{}

// Variants returns up to max distinct rewrites, original first.
func (HeuristicVariants) Variants(query string, max int) []string {
	if max <= 0 {
		max = 1
	}

	candidates := []string{strings.TrimSpace(query)}

	// Stopword-stripped, original word order.
	var kept []string
	for _, w := range strings.Fields(query) {
		if !stopwords[strings.ToLower(strings.Trim(w, "?!.,;:"))] {
			kept = append(kept, strings.Trim(w, "?!.,;:"))
		}
	}
	if len(kept) > 0 {
		candidates = append(candidates, strings.Join(kept, " "))
	}

	// Lowercased distinct keywords, sorted for stability.
	tokens := Tokenize(query)
	seen := make(map[string]bool)
	var keywords []string
	for _, tok := range tokens {
		if !stopwords[tok] && !seen[tok] {
			seen[tok] = true
			keywords = append(keywords, tok)
		}
	}
	if len(keywords) > 0 {
		sorted := make([]string, len(keywords))
		copy(sorted, keywords)
		sort.Strings(sorted)
		candidates = append(candidates, strings.Join(keywords, " "), strings.Join(sorted, " "))
	}

	// Dedupe case-insensitively, preserving order; original stays first.
	var out []string
	unique := make(map[string]bool)
	for _, c := range candidates {
		key := strings.ToLower(strings.TrimSpace(c))
		if key == "" || unique[key] {
			continue
		}
		unique[key] = true
		out = append(out, c)
		if len(out) == max {
			break
		}
	}
	return out
}

// AdvancedSearch serves POST /v1/search/advanced: the query is rewritten
// into variants, each variant retrieves concurrently under its own
// timeout, and the ranked lists are fused with reciprocal rank fusion.
func (e *Engine) AdvancedSearch(ctx context.Context, req api.AdvancedSearchRequest) (api.AdvancedSearchResponse, error) {
	start := time.Now()
	limit := req.Limit
	if limit <= 0 {
		limit = e.defaultLimit
	}

	variants := e.variants.Variants(req.Text, e.maxVariants)
	resp := api.AdvancedSearchResponse{Query: req.Text, QueryVariants: variants}

	lists := make([][]api.SearchResult, len(variants))
	failures := make([]bool, len(variants))

	var wg sync.WaitGroup
	for i, v := range variants {
		wg.Add(1)
		go func(i int, v string) {
			defer wg.Done()

			vctx, cancel := context.WithTimeout(ctx, e.variantTimeout)
			defer cancel()

			results, err := e.vectorSearch(vctx, v, limit)
			if err != nil {
				// A failed or timed-out variant contributes nothing.
				failures[i] = true
				return
			}
			lists[i] = results
		}(i, v)
	}
	wg.Wait()

	// Only when every variant failed does the request degrade to keyword
	// mode; partial variant failures just thin the fusion input.
	allFailed := true
	for _, f := range failures {
		if !f {
			allFailed = false
			break
		}
	}
	if allFailed {
		kwResults, err := e.keywordSearch(ctx, req.Text, limit)
		if err != nil {
			return resp, err
		}
		resp.Mode = api.ModeKeyword
		resp.Results = kwResults
		e.metrics.RecordSearch(string(resp.Mode), time.Since(start).Seconds())
		return resp, nil
	}

	fused := fuseRRF(lists, e.rrfK)
	if len(fused) > limit {
		fused = fused[:limit]
	}

	resp.Mode = api.ModeVector
	resp.Results = fused
	e.metrics.RecordSearch(string(resp.Mode), time.Since(start).Seconds())
	return resp, nil
}

// fuseRRF merges ranked lists with reciprocal rank fusion: each upload
// accumulates 1/(k + rank) across the lists it appears in, rank starting
// at 1. VectorScore carries the best per-variant similarity for context;
// ordering is by RRF score.
func fuseRRF(lists [][]api.SearchResult, k int) []api.SearchResult {
	type fusion struct {
		result api.SearchResult
		score  float32
	}
	byUpload := make(map[string]*fusion)

	for _, list := range lists {
		for rank, r := range list {
			contribution := float32(1) / float32(k+rank+1)
			f, ok := byUpload[r.UploadID]
			if !ok {
				byUpload[r.UploadID] = &fusion{result: r, score: contribution}
				continue
			}
			f.score += contribution
			if r.VectorScore > f.result.VectorScore {
				// Keep the best-scoring chunk as the representative hit.
				f.result = r
			}
		}
	}

	results := make([]api.SearchResult, 0, len(byUpload))
	for _, f := range byUpload {
		score := f.score
		f.result.RRFScore = &score
		results = append(results, f.result)
	}
	sort.Slice(results, func(i, j int) bool {
		if *results[i].RRFScore != *results[j].RRFScore {
			return *results[i].RRFScore > *results[j].RRFScore
		}
		if results[i].VectorScore != results[j].VectorScore {
			return results[i].VectorScore > results[j].VectorScore
		}
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	return results
}
