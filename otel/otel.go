package otel

import (
	ddd "github.com/terraskye/ddd"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Semantic attribute keys following OpenTelemetry conventions
const (
	// Command attributes
	AttrCommandType   = attribute.Key("ddd.command.type")
	AttrCommandID     = attribute.Key("ddd.command.id")
	AttrAggregateID   = attribute.Key("ddd.aggregate.id")
	AttrAggregateType = attribute.Key("ddd.aggregate.type")

	// Correlation attributes
	AttrCorrelationID = attribute.Key("ddd.correlation.id")
	AttrCausationID   = attribute.Key("ddd.causation.id")

	// Stream attributes
	AttrStreamID = attribute.Key("ddd.stream.id")

	// Event attributes
	AttrEventType  = attribute.Key("ddd.event.type")
	AttrEventID    = attribute.Key("ddd.event.id")
	AttrEventCount = attribute.Key("ddd.events.count")

	// EventBus attributes
	AttrSubscriberName = attribute.Key("ddd.subscriber.name")

	// Operation attributes
	AttrOperation = attribute.Key("ddd.operation")
)

var (
	meter = otel.Meter(ddd.InstrumentationName, metric.WithInstrumentationVersion(ddd.InstrumentationVersion))

	// Command metrics
	CommandsHandled, _ = meter.Int64Counter(
		"ddd.commands.handled",
		metric.WithDescription("Total number of commands handled"),
		metric.WithUnit("{command}"),
	)

	CommandsDuration, _ = meter.Float64Histogram(
		"ddd.commands.duration",
		metric.WithDescription("Command handling duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000),
	)

	CommandsInFlight, _ = meter.Int64UpDownCounter(
		"ddd.commands.in_flight",
		metric.WithDescription("Number of commands currently being processed"),
		metric.WithUnit("{command}"),
	)

	CommandsFailed, _ = meter.Int64Counter(
		"ddd.commands.failed",
		metric.WithDescription("Number of failed commands"),
		metric.WithUnit("{command}"),
	)

	CommandsRejected, _ = meter.Int64Counter(
		"ddd.commands.rejected",
		metric.WithDescription("Number of commands rejected by a business rule"),
		metric.WithUnit("{command}"),
	)

	// Event metrics
	EventsAppended, _ = meter.Int64Counter(
		"ddd.events.appended",
		metric.WithDescription("Number of events appended to streams"),
		metric.WithUnit("{event}"),
	)

	EventsLoaded, _ = meter.Int64Counter(
		"ddd.events.loaded",
		metric.WithDescription("Number of events loaded from streams"),
		metric.WithUnit("{event}"),
	)

	// EventBus metrics
	EventBusPublished, _ = meter.Int64Counter(
		"ddd.eventbus.published",
		metric.WithDescription("Number of events published to event bus"),
		metric.WithUnit("{event}"),
	)

	EventBusHandled, _ = meter.Int64Counter(
		"ddd.eventbus.handled",
		metric.WithDescription("Number of events handled by subscribers"),
		metric.WithUnit("{event}"),
	)

	EventBusErrors, _ = meter.Int64Counter(
		"ddd.eventbus.errors",
		metric.WithDescription("Number of event bus handler errors"),
		metric.WithUnit("{error}"),
	)

	EventBusDuration, _ = meter.Float64Histogram(
		"ddd.eventbus.duration",
		metric.WithDescription("Event handler duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000),
	)

	// EventStore metrics
	EventStoreAppends, _ = meter.Int64Counter(
		"ddd.eventstore.appends",
		metric.WithDescription("Number of append operations"),
		metric.WithUnit("{operation}"),
	)

	EventStoreLoads, _ = meter.Int64Counter(
		"ddd.eventstore.loads",
		metric.WithDescription("Number of load operations"),
		metric.WithUnit("{operation}"),
	)

	EventStoreDuration, _ = meter.Float64Histogram(
		"ddd.eventstore.duration",
		metric.WithDescription("Event store operation duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000),
	)

	EventStoreErrors, _ = meter.Int64Counter(
		"ddd.eventstore.errors",
		metric.WithDescription("Number of event store errors"),
		metric.WithUnit("{error}"),
	)
)

// messageAttributes describes the correlation chain of msg without
// tripping the uncorrelated-read panic.
func messageAttributes(msg ddd.Message) []attribute.KeyValue {
	c, ok := msg.(interface{ IsCorrelated() bool })
	if !ok || !c.IsCorrelated() {
		return nil
	}
	return []attribute.KeyValue{
		AttrCorrelationID.String(msg.CorrelationID().String()),
		AttrCausationID.String(msg.CausationID().String()),
	}
}
