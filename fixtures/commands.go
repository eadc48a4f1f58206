package fixtures

import ddd "github.com/terraskye/ddd"

// TestCommand is a configurable test command implementing the Command interface.
type TestCommand struct {
	ddd.CommandBase
	Target ddd.ID `json:"target"`
	Data   string `json:"data"`
}

func (c *TestCommand) AggregateID() ddd.ID { return c.Target }

// TestCommandBuilder provides a fluent API for constructing test commands.
type TestCommandBuilder struct {
	target ddd.ID
	data   string
	cause  ddd.Message
}

// NewTestCommand creates a new TestCommandBuilder with sensible defaults.
func NewTestCommand() *TestCommandBuilder {
	return &TestCommandBuilder{
		target: ddd.NextID(TestAggregateKind),
	}
}

// WithTarget sets the aggregate ID.
func (b *TestCommandBuilder) WithTarget(id ddd.ID) *TestCommandBuilder {
	b.target = id
	return b
}

// WithData sets custom data on the command.
func (b *TestCommandBuilder) WithData(data string) *TestCommandBuilder {
	b.data = data
	return b
}

// CausedBy correlates the command with msg.
func (b *TestCommandBuilder) CausedBy(msg ddd.Message) *TestCommandBuilder {
	b.cause = msg
	return b
}

// Build constructs the TestCommand.
func (b *TestCommandBuilder) Build() *TestCommand {
	cmd := &TestCommand{
		CommandBase: ddd.NewCommandBase(),
		Target:      b.target,
		Data:        b.data,
	}
	if b.cause != nil {
		cmd.CorrelateWith(b.cause)
	}
	return cmd
}
