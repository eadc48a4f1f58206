package logging

import (
	"context"
	"reflect"

	"github.com/sirupsen/logrus"
	ddd "github.com/terraskye/ddd"
)

// WithCommandLogging wraps a CommandHandler with logging functionality.
// It logs the command type, correlation and aggregate ID before execution,
// and logs errors if the command fails.
func WithCommandLogging[C ddd.Command](logger *logrus.Entry, next ddd.CommandHandler[C]) ddd.CommandHandler[C] {
	return func(ctx context.Context, command C) error {
		cmdType := reflect.TypeOf(command).String()
		entry := logger.WithFields(commandFields(command))
		entry.Infof("Dispatch: %s", cmdType)

		err := next(ctx, command)
		if err != nil {
			entry.WithError(err).Errorf("Dispatch failed: %s", cmdType)
		}

		return err
	}
}

func commandFields(cmd ddd.Command) logrus.Fields {
	fields := logrus.Fields{"commandId": cmd.MessageID().String()}
	if c, ok := cmd.(interface{ IsCorrelated() bool }); ok && c.IsCorrelated() {
		fields["correlationId"] = cmd.CorrelationID().String()
	}
	if t, ok := cmd.(interface{ AggregateID() ddd.ID }); ok {
		fields["aggregateId"] = t.AggregateID().String()
	}
	return fields
}
