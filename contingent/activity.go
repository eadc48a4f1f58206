package contingent

import (
	"context"
	"log/slog"

	ddd "github.com/terraskye/ddd"
)

// ActivityLog writes one log record per contingent change. Subscribe the
// result of Handler to the local event bus.
type ActivityLog struct {
	log *slog.Logger
}

func NewActivityLog(log *slog.Logger) *ActivityLog {
	return &ActivityLog{log: log.With(slog.String("aggregate", "Contingent"))}
}

func (a *ActivityLog) Handler() *ddd.EventGroupProcessor {
	return ddd.NewEventGroupProcessor(
		ddd.OnEvent(a.OnContingentInitialized),
		ddd.OnEvent(a.OnContingentIncreased),
		ddd.OnEvent(a.OnContingentReduced),
		ddd.OnEvent(a.OnContingentSetToUnlimited),
		ddd.OnEvent(a.OnContingentLimited),
		ddd.OnEvent(a.OnContingentSold),
	)
}

func (a *ActivityLog) OnContingentInitialized(ctx context.Context, ev *ContingentInitialized) error {
	attrs := []any{slog.String("contingentId", ev.AggregateID().String()), slog.String("eventId", ev.EventID)}
	if ev.Quantity != nil {
		attrs = append(attrs, slog.Int("quantity", *ev.Quantity))
	}
	a.log.InfoContext(ctx, "contingent initialized", attrs...)
	return nil
}

func (a *ActivityLog) OnContingentIncreased(ctx context.Context, ev *ContingentIncreased) error {
	a.quantity(ctx, "contingent increased", ev, ev.Quantity)
	return nil
}

func (a *ActivityLog) OnContingentReduced(ctx context.Context, ev *ContingentReduced) error {
	a.quantity(ctx, "contingent reduced", ev, ev.Quantity)
	return nil
}

func (a *ActivityLog) OnContingentSetToUnlimited(ctx context.Context, ev *ContingentSetToUnlimited) error {
	a.log.InfoContext(ctx, "contingent set to unlimited", slog.String("contingentId", ev.AggregateID().String()))
	return nil
}

func (a *ActivityLog) OnContingentLimited(ctx context.Context, ev *ContingentLimited) error {
	a.quantity(ctx, "contingent limited", ev, ev.Quantity)
	return nil
}

func (a *ActivityLog) OnContingentSold(ctx context.Context, ev *ContingentSold) error {
	a.quantity(ctx, "contingent sold", ev, ev.Quantity)
	return nil
}

func (a *ActivityLog) quantity(ctx context.Context, msg string, ev ddd.Event, q int) {
	a.log.InfoContext(ctx, msg,
		slog.String("contingentId", ev.AggregateID().String()),
		slog.Int("quantity", q),
	)
}
