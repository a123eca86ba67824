package catalog

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrNoSuitableAgent means no catalog entry scored above the minimum
// confidence for a task description.
var ErrNoSuitableAgent = errors.New("no suitable agent")

// Resolver picks the agent best suited to execute a task description.
// It is an interface so a deterministic double can replace the similarity
// search in tests.
type Resolver interface {
	Resolve(description string) (Descriptor, float64, error)
}

// SimilarityResolver matches task descriptions against capability
// embeddings over the in-memory catalog index.
type SimilarityResolver struct {
	catalog       *Catalog
	minConfidence float64
}

func NewResolver(c *Catalog, minConfidence float64) *SimilarityResolver {
	return &SimilarityResolver{catalog: c, minConfidence: minConfidence}
}

// Resolve embeds the description and returns the highest-scoring agent.
// Scores below the minimum confidence fail with ErrNoSuitableAgent rather
// than guessing.
func (r *SimilarityResolver) Resolve(description string) (Descriptor, float64, error) {
	query := Embed(description)

	var best Descriptor
	bestScore := -1.0
	for _, a := range r.catalog.Agents() {
		score := Cosine(query, a.Embedding)
		if score > bestScore {
			best = a
			bestScore = score
		}
	}

	if bestScore < r.minConfidence {
		return Descriptor{}, bestScore, fmt.Errorf("%w for %q (best score %.2f)", ErrNoSuitableAgent, description, bestScore)
	}

	slog.Debug("resolved agent", "agent", best.Name, "score", bestScore)
	return best, bestScore, nil
}
