package negotiation

import (
	"context"
	"fmt"
	"sync"

	"github.com/bendoumahosni/intent-interpretation/internal/catalog"
	"github.com/bendoumahosni/intent-interpretation/internal/index"
)

// mockSearcher returns canned matches per query and records the topK it was
// asked for. Assemble fans out over services, so the recording is locked.
type mockSearcher struct {
	mu         sync.Mutex
	matches    map[string][]index.Match
	err        error
	queries    []string
	topKValues []int
}

func (m *mockSearcher) Search(_ context.Context, query string, topK int) ([]index.Match, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.topKValues = append(m.topKValues, topK)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.matches[query], nil
}

// mockStore resolves specs from an in-memory map.
type mockStore struct {
	specs map[string]*catalog.ServiceSpec
}

func (m *mockStore) Lookup(idOrName string) (*catalog.ServiceSpec, error) {
	if spec, ok := m.specs[idOrName]; ok {
		return spec, nil
	}
	return nil, fmt.Errorf("%w: %q", catalog.ErrNotFound, idOrName)
}
