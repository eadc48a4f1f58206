package contingent

import (
	"context"

	ddd "github.com/terraskye/ddd"
)

// Repository loads contingents from an event store. Saving happens through
// the transaction manager of the command handlers.
type Repository struct {
	store ddd.EventStore
}

func NewRepository(store ddd.EventStore) *Repository {
	return &Repository{store: store}
}

func (r *Repository) NextID() ddd.ID {
	return ddd.NextID(Kind)
}

// FindOneByID returns *ContingentNotFoundError when id has no history.
func (r *Repository) FindOneByID(ctx context.Context, id ddd.ID) (*Contingent, error) {
	stream, err := r.store.GetAggregateStream(ctx, id.WithKind(Kind))
	if err != nil {
		return nil, err
	}
	if stream.IsEmpty() {
		return nil, &ContingentNotFoundError{ContingentID: id}
	}
	return FromStream(stream)
}
