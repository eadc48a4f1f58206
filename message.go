package ddd

// Message is anything that travels through the system carrying a
// correlation chain: commands and events.
type Message interface {
	MessageID() ID
	CorrelationID() ID
	CausationID() ID

	// CorrelateWith makes the receiver a consequence of other: it adopts
	// other's correlation root and records other as its direct cause.
	CorrelateWith(other Message)
}

// MessageBase holds the identity and correlation chain of a message.
// It is meant to be embedded.
type MessageBase struct {
	id             ID
	correlation    ID
	causation      ID
	hasCorrelation bool
	hasCausation   bool
}

func (m *MessageBase) MessageID() ID { return m.id }

// CorrelationID returns the root of the correlation chain.
// It panics with *UncorrelatedMessageError when the message was never
// correlated; use IsCorrelated to check first.
func (m *MessageBase) CorrelationID() ID {
	if !m.hasCorrelation {
		panic(&UncorrelatedMessageError{Field: "correlationId", MessageID: m.id})
	}
	return m.correlation
}

// CausationID returns the id of the message that directly caused this one.
// It panics like CorrelationID when the message was never correlated.
func (m *MessageBase) CausationID() ID {
	if !m.hasCausation {
		panic(&UncorrelatedMessageError{Field: "causationId", MessageID: m.id})
	}
	return m.causation
}

// IsCorrelated reports whether both correlation and causation are set.
func (m *MessageBase) IsCorrelated() bool { return m.hasCorrelation && m.hasCausation }

func (m *MessageBase) CorrelateWith(other Message) {
	m.correlation = other.CorrelationID()
	m.causation = other.MessageID()
	m.hasCorrelation, m.hasCausation = true, true
}

func (m *MessageBase) correlationRef() *ID {
	if !m.hasCorrelation {
		return nil
	}
	id := m.correlation
	return &id
}

func (m *MessageBase) causationRef() *ID {
	if !m.hasCausation {
		return nil
	}
	id := m.causation
	return &id
}

// restore sets the chain from persisted values; nil leaves a field unset.
func (m *MessageBase) restore(id ID, correlation, causation *ID) {
	m.id = id
	m.hasCorrelation, m.hasCausation = correlation != nil, causation != nil
	if correlation != nil {
		m.correlation = *correlation
	}
	if causation != nil {
		m.causation = *causation
	}
}
