package contingent

import (
	"context"

	ddd "github.com/terraskye/ddd"
)

type InitializeContingent struct {
	ddd.CommandBase
	ContingentID ddd.ID `json:"contingentId"`
	EventID      ddd.ID `json:"eventId"`
	Quantity     *int   `json:"quantity"`
}

func (c *InitializeContingent) AggregateID() ddd.ID { return c.ContingentID }

type IncreaseContingent struct {
	ddd.CommandBase
	ContingentID ddd.ID `json:"contingentId"`
	Quantity     int    `json:"quantity"`
}

func (c *IncreaseContingent) AggregateID() ddd.ID { return c.ContingentID }

type ReduceContingent struct {
	ddd.CommandBase
	ContingentID ddd.ID `json:"contingentId"`
	Quantity     int    `json:"quantity"`
}

func (c *ReduceContingent) AggregateID() ddd.ID { return c.ContingentID }

type LimitContingent struct {
	ddd.CommandBase
	ContingentID ddd.ID `json:"contingentId"`
	Quantity     int    `json:"quantity"`
}

func (c *LimitContingent) AggregateID() ddd.ID { return c.ContingentID }

type SetContingentToUnlimited struct {
	ddd.CommandBase
	ContingentID ddd.ID `json:"contingentId"`
}

func (c *SetContingentToUnlimited) AggregateID() ddd.ID { return c.ContingentID }

type SellContingent struct {
	ddd.CommandBase
	ContingentID ddd.ID `json:"contingentId"`
	Quantity     int    `json:"quantity"`
}

func (c *SellContingent) AggregateID() ddd.ID { return c.ContingentID }

// Decorator wraps a command handler, e.g. with logging or telemetry.
//
//	func(next ddd.CommandHandler[ddd.Command]) ddd.CommandHandler[ddd.Command] {
//	    return otel.WithCommandTelemetry(next)
//	}
type Decorator func(next ddd.CommandHandler[ddd.Command]) ddd.CommandHandler[ddd.Command]

// RegisterHandlers registers a handler for every contingent command on bus.
// The first decorator is the outermost.
func RegisterHandlers(bus *ddd.CommandBus, tm ddd.TransactionManager, registry *ddd.EventRegistry, repo *Repository, decorators ...Decorator) {
	ddd.Register(bus, decorate(ddd.NewCommandHandler(tm, registry,
		func(ctx context.Context, cmd *InitializeContingent) (ddd.EventProvider, error) {
			c, err := Initialize(cmd.ContingentID.WithKind(Kind), cmd.EventID.WithKind(TicketedEventKind), cmd.Quantity)
			if err != nil {
				return nil, err
			}
			return c, nil
		}), decorators))

	ddd.Register(bus, decorate(ddd.NewCommandHandler(tm, registry,
		func(ctx context.Context, cmd *IncreaseContingent) (ddd.EventProvider, error) {
			return load(ctx, repo, cmd.ContingentID, func(c *Contingent) error { return c.Increase(cmd.Quantity) })
		}), decorators))

	ddd.Register(bus, decorate(ddd.NewCommandHandler(tm, registry,
		func(ctx context.Context, cmd *ReduceContingent) (ddd.EventProvider, error) {
			return load(ctx, repo, cmd.ContingentID, func(c *Contingent) error { return c.Reduce(cmd.Quantity) })
		}), decorators))

	ddd.Register(bus, decorate(ddd.NewCommandHandler(tm, registry,
		func(ctx context.Context, cmd *LimitContingent) (ddd.EventProvider, error) {
			return load(ctx, repo, cmd.ContingentID, func(c *Contingent) error { return c.Limit(cmd.Quantity) })
		}), decorators))

	ddd.Register(bus, decorate(ddd.NewCommandHandler(tm, registry,
		func(ctx context.Context, cmd *SetContingentToUnlimited) (ddd.EventProvider, error) {
			return load(ctx, repo, cmd.ContingentID, (*Contingent).SetToUnlimited)
		}), decorators))

	ddd.Register(bus, decorate(ddd.NewCommandHandler(tm, registry,
		func(ctx context.Context, cmd *SellContingent) (ddd.EventProvider, error) {
			return load(ctx, repo, cmd.ContingentID, func(c *Contingent) error { return c.Sell(cmd.Quantity) })
		}), decorators))
}

func load(ctx context.Context, repo *Repository, id ddd.ID, change func(c *Contingent) error) (ddd.EventProvider, error) {
	c, err := repo.FindOneByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := change(c); err != nil {
		return nil, err
	}
	return c, nil
}

func decorate[C ddd.Command](h ddd.CommandHandler[C], decorators []Decorator) ddd.CommandHandler[C] {
	if len(decorators) == 0 {
		return h
	}
	next := ddd.CommandHandler[ddd.Command](func(ctx context.Context, cmd ddd.Command) error {
		return h(ctx, cmd.(C))
	})
	for i := len(decorators) - 1; i >= 0; i-- {
		next = decorators[i](next)
	}
	return func(ctx context.Context, cmd C) error {
		return next(ctx, cmd)
	}
}
