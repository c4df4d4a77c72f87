package flow

import (
	"context"

	"github.com/soulisrael/ai-comm-platform-sub001/internal/storekit"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/types"
)

// Store is the Flow Engine's CRUD surface over persisted Flow definitions;
// internal/trigger.Manager consumes it through the FlowProvider interface.
type Store struct {
	store storekit.Store[types.Flow]
}

func NewStore(store storekit.Store[types.Flow]) *Store {
	return &Store{store: store}
}

func (s *Store) Create(ctx context.Context, f types.Flow) error {
	return s.store.Create(ctx, f.ID, f)
}

func (s *Store) Get(ctx context.Context, id string) (types.Flow, error) {
	f, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return types.Flow{}, err
	}
	if !ok {
		return types.Flow{}, types.NotFound(component, "flow "+id+" not found")
	}
	return f, nil
}

func (s *Store) Update(ctx context.Context, id string, merge func(types.Flow) types.Flow) (types.Flow, error) {
	return s.store.Update(ctx, id, merge)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

func (s *Store) All(ctx context.Context) ([]types.Flow, error) {
	return s.store.GetAll(ctx)
}

// ActiveFlows satisfies internal/trigger.FlowProvider.
func (s *Store) ActiveFlows(ctx context.Context) ([]types.Flow, error) {
	return s.store.Find(ctx, func(f types.Flow) bool { return f.Active })
}
