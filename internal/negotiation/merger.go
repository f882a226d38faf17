package negotiation

import (
	"context"
	"errors"

	"github.com/bendoumahosni/intent-interpretation/internal/logging"
	"github.com/bendoumahosni/intent-interpretation/internal/session"
	"github.com/bendoumahosni/intent-interpretation/internal/types"
)

// ErrNoNewProposals signals that a clarification round produced nothing
// beyond the services the user already validated.
var ErrNoNewProposals = errors.New("negotiation: clarification produced no new proposals")

// FilterValidated drops every identification whose name is already in the
// validated set. Order is preserved. Returns ErrNoNewProposals when nothing
// survives the filter.
func FilterValidated(decomp types.Decomposition, validatedNames []string) (types.Decomposition, error) {
	validated := make(map[string]bool, len(validatedNames))
	for _, name := range validatedNames {
		validated[name] = true
	}

	var filtered []types.ServiceIdentification
	for _, ident := range decomp.Services {
		if validated[ident.Name] {
			continue
		}
		filtered = append(filtered, ident)
	}

	if len(filtered) == 0 {
		return types.Decomposition{}, ErrNoNewProposals
	}
	return types.Decomposition{Services: filtered}, nil
}

// MergeClarification folds a clarification round into the session: the new
// identifications are filtered against the validated set, upserted into the
// identified map, and candidates are recomputed only for the surviving
// services. The validated filter is structural; the prompt asking the model
// to avoid validated services is not trusted on its own.
func MergeClarification(ctx context.Context, state *session.State, assembler *Assembler, decomp types.Decomposition) (types.Decomposition, error) {
	timer := logging.StartTimer(logging.CategorySession, "MergeClarification")
	defer timer.Stop()

	filtered, err := FilterValidated(decomp, state.ValidatedNames())
	if err != nil {
		return types.Decomposition{}, err
	}

	state.UpsertIdentifications(filtered.Services)

	candidates, err := assembler.Assemble(ctx, filtered)
	if err != nil {
		return types.Decomposition{}, err
	}
	for name, list := range candidates {
		if err := state.SetCandidates(name, list); err != nil {
			return types.Decomposition{}, err
		}
	}

	logging.Session("merged clarification: %d new services (of %d proposed)",
		len(filtered.Services), len(decomp.Services))
	return filtered, nil
}
