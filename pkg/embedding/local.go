package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// LocalConfig holds settings for the in-process provider.
type LocalConfig struct {
	Model      string // model identifier, default: hash-v1
	Dimensions int    // vector size, required
}

// LocalProvider is an in-process embedder with no network dependency. It
// projects token and character-trigram features into a fixed-size vector
// by feature hashing and L2-normalizes the result, so cosine similarity
// reflects lexical overlap. Quality is well below a trained model, but it
// keeps the full retrieval path working offline and in tests.
//
// The provider is stateless after construction and safe for concurrent use.
type LocalProvider struct {
	model string
	dims  int
}

// Compile-time check that LocalProvider implements Provider.
var _ Provider = (*LocalProvider)(nil)

// NewLocal creates an in-process embedding provider. It returns
// ErrModelLoad if the configuration cannot produce a usable model.
func NewLocal(cfg LocalConfig) (*LocalProvider, error) {
	if cfg.Model == "" {
		cfg.Model = "hash-v1"
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive, got %d", ErrModelLoad, cfg.Dimensions)
	}

	return &LocalProvider{
		model: cfg.Model,
		dims:  cfg.Dimensions,
	}, nil
}

// Embed computes one vector per input text.
func (p *LocalProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vectors[i] = p.embedOne(text)
	}
	return vectors, nil
}

func (p *LocalProvider) embedOne(text string) []float32 {
	vec := make([]float32, p.dims)

	for _, feature := range features(text) {
		h := fnv.New32a()
		h.Write([]byte(feature))
		sum := h.Sum32()

		idx := int(sum % uint32(p.dims))
		// The next hash bit decides the sign, which spreads collisions
		// instead of letting them always accumulate.
		sign := float32(1)
		if sum&0x80000000 != 0 {
			sign = -1
		}
		vec[idx] += sign
	}

	// L2 normalize so dot products behave as cosine similarity.
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}

	return vec
}

// features extracts lowercase word tokens plus character trigrams. The
// trigrams give partial-word matches some signal, which matters for
// filename queries.
func features(text string) []string {
	lower := strings.ToLower(text)

	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	feats := make([]string, 0, len(words)*4)
	for _, w := range words {
		feats = append(feats, "w:"+w)
		runes := []rune(w)
		for i := 0; i+3 <= len(runes); i++ {
			feats = append(feats, "t:"+string(runes[i:i+3]))
		}
	}
	return feats
}

// Dimensions returns the configured vector size.
func (p *LocalProvider) Dimensions() int {
	return p.dims
}

// ModelTag returns the collection namespace tag for this provider.
func (p *LocalProvider) ModelTag() string {
	return fmt.Sprintf("local-%s-%d", sanitizeTag(p.model), p.dims)
}
