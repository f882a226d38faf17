// Package negotiation assembles catalog candidates for identified services
// and merges clarification rounds against what the user already validated.
package negotiation

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/bendoumahosni/intent-interpretation/internal/catalog"
	"github.com/bendoumahosni/intent-interpretation/internal/index"
	"github.com/bendoumahosni/intent-interpretation/internal/logging"
	"github.com/bendoumahosni/intent-interpretation/internal/types"
)

// Searcher is the semantic retrieval surface the assembler depends on.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]index.Match, error)
}

const (
	// DefaultTopK caps how many candidates each service gets.
	DefaultTopK = 3

	// DefaultMinScore is the similarity floor inside the negotiation flow.
	DefaultMinScore = 0.2

	// LookupMinScore is the stricter floor for bare catalog lookups
	// outside a negotiation round.
	LookupMinScore = 0.5
)

// Assembler turns identified services into ranked catalog candidates with
// their customer-facing dependencies resolved.
type Assembler struct {
	searcher Searcher
	store    catalog.Store
	topK     int
	minScore float64
}

// NewAssembler creates an Assembler. topK and minScore fall back to the
// defaults when zero.
func NewAssembler(searcher Searcher, store catalog.Store, topK int, minScore float64) *Assembler {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if minScore <= 0 {
		minScore = DefaultMinScore
	}
	return &Assembler{
		searcher: searcher,
		store:    store,
		topK:     topK,
		minScore: minScore,
	}
}

// Assemble finds candidates for every identified service. Services are
// searched concurrently; the result map is keyed by the identified name and
// every service gets an entry, possibly empty.
func (a *Assembler) Assemble(ctx context.Context, decomp types.Decomposition) (map[string][]types.ServiceCandidate, error) {
	timer := logging.StartTimer(logging.CategoryRetrieval, "Assembler.Assemble")
	defer timer.Stop()

	results := make([][]types.ServiceCandidate, len(decomp.Services))

	g, gctx := errgroup.WithContext(ctx)
	for i, ident := range decomp.Services {
		g.Go(func() error {
			candidates, err := a.CandidatesFor(gctx, ident)
			if err != nil {
				return fmt.Errorf("candidates for %q: %w", ident.Name, err)
			}
			results[i] = candidates
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byService := make(map[string][]types.ServiceCandidate, len(decomp.Services))
	for i, ident := range decomp.Services {
		byService[ident.Name] = results[i]
	}
	return byService, nil
}

// CandidatesFor retrieves candidates for a single identified service. The
// query combines the name with its rationale, the retriever is asked for
// twice the cap so the score floor has room to drop weak matches, and each
// surviving match gets its dependencies resolved from the catalog. A match
// missing from the catalog keeps empty dependencies rather than failing the
// round.
func (a *Assembler) CandidatesFor(ctx context.Context, ident types.ServiceIdentification) ([]types.ServiceCandidate, error) {
	query := ident.Name
	if ident.Rationale != "" {
		query += " " + ident.Rationale
	}

	matches, err := a.searcher.Search(ctx, query, a.topK*2)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	var candidates []types.ServiceCandidate
	for _, m := range matches {
		if m.Score < a.minScore {
			continue
		}

		deps := a.resolveDependencies(m.CatalogID)
		candidates = append(candidates, types.ServiceCandidate{
			ServiceID:    m.CatalogID,
			Name:         m.Name,
			Description:  m.Description,
			Score:        types.RoundScore(m.Score),
			Dependencies: deps,
		})
		if len(candidates) == a.topK {
			break
		}
	}

	logging.RetrievalDebug("service %q: %d matches, %d candidates kept", ident.Name, len(matches), len(candidates))
	return candidates, nil
}

func (a *Assembler) resolveDependencies(serviceID string) []types.ServiceDependency {
	spec, err := a.store.Lookup(serviceID)
	if err != nil {
		if !errors.Is(err, catalog.ErrNotFound) {
			logging.Get(logging.CategoryRetrieval).Warn("catalog lookup %s: %v", serviceID, err)
		}
		return nil
	}
	return catalog.ExtractDependencies(spec)
}
