package ddd

// Command is a request to change the state of the domain.
//
// Concrete commands embed CommandBase and expose their arguments as
// read-only exported fields:
//
//	type IncreaseContingent struct {
//	    ddd.CommandBase
//	    ContingentID ddd.ID
//	    Quantity     int
//	}
//
//	cmd := &IncreaseContingent{CommandBase: ddd.NewCommandBase(), ContingentID: id, Quantity: 5}
//
// The header methods have pointer receivers, so commands travel as pointers.
type Command interface {
	Message
}

// CommandBase is the embeddable message header of a command.
type CommandBase struct {
	MessageBase
}

// NewCommandBase returns a header with a fresh command id. A new command is
// the root of its own correlation chain until CorrelateWith is called.
func NewCommandBase() CommandBase {
	id := NextID(CommandKind)
	return CommandBase{MessageBase: MessageBase{
		id:             id,
		correlation:    id,
		causation:      id,
		hasCorrelation: true,
		hasCausation:   true,
	}}
}

// aggregateTarget is implemented by commands addressed to a single aggregate.
type aggregateTarget interface {
	AggregateID() ID
}
