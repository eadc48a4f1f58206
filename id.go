package ddd

import (
	"github.com/google/uuid"
)

// Role is the kind of thing an identifier points to.
type Role uint8

const (
	RoleMessage Role = iota
	RoleCommand
	RoleEvent
	RoleEntity
	RoleAggregate
)

func (r Role) String() string {
	switch r {
	case RoleMessage:
		return "message"
	case RoleCommand:
		return "command"
	case RoleEvent:
		return "event"
	case RoleEntity:
		return "entity"
	case RoleAggregate:
		return "aggregate"
	default:
		return "unknown"
	}
}

// Kind qualifies an identifier with its role and, for entities and
// aggregates, the concrete type name.
type Kind struct {
	role Role
	name string
}

var (
	MessageKind = Kind{role: RoleMessage}
	CommandKind = Kind{role: RoleCommand}
	EventKind   = Kind{role: RoleEvent}
)

// AggregateKind returns the kind for identifiers of the named aggregate type.
// The name is used as the stream prefix, see StreamName.
func AggregateKind(name string) Kind {
	return Kind{role: RoleAggregate, name: name}
}

// EntityKind returns the kind for identifiers of the named entity type.
func EntityKind(name string) Kind {
	return Kind{role: RoleEntity, name: name}
}

func (k Kind) Role() Role   { return k.role }
func (k Kind) Name() string { return k.name }

func (k Kind) String() string {
	if k.name == "" {
		return k.role.String()
	}
	return k.role.String() + ":" + k.name
}

// ID is an immutable, kind-qualified UUID.
//
// Equality is kind aware: two identifiers with the same value but unrelated
// kinds are different identifiers. A message id is compatible with both
// command and event ids since both are messages.
type ID struct {
	kind  Kind
	value uuid.UUID
}

// NextID generates a fresh random identifier of the given kind.
func NextID(kind Kind) ID {
	return ID{kind: kind, value: uuid.New()}
}

// ParseID validates s as a UUID and returns an identifier of the given kind.
func ParseID(kind Kind, s string) (ID, error) {
	v, err := uuid.Parse(s)
	if err != nil {
		return ID{}, &InvalidIdentifierError{Value: s}
	}
	return ID{kind: kind, value: v}, nil
}

// MustParseID is like ParseID but panics on malformed input.
func MustParseID(kind Kind, s string) ID {
	id, err := ParseID(kind, s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the canonical lowercase form of the UUID.
func (id ID) String() string {
	return id.value.String()
}

func (id ID) Kind() Kind { return id.kind }

func (id ID) UUID() uuid.UUID { return id.value }

// AggregateType returns the aggregate type name for aggregate identifiers
// and "" for every other kind.
func (id ID) AggregateType() string {
	if id.kind.role != RoleAggregate {
		return ""
	}
	return id.kind.name
}

func (id ID) IsZero() bool {
	return id.value == uuid.Nil
}

// WithKind returns the identifier with its kind replaced.
func (id ID) WithKind(kind Kind) ID {
	return ID{kind: kind, value: id.value}
}

// Equals reports whether both identifiers have the same value and
// compatible kinds.
func (id ID) Equals(other ID) bool {
	if id.value != other.value {
		return false
	}
	return compatible(id.kind, other.kind)
}

func compatible(a, b Kind) bool {
	if a == b {
		return true
	}
	isMessage := func(k Kind) bool { return k.role == RoleCommand || k.role == RoleEvent }
	if a.role == RoleMessage && isMessage(b) {
		return true
	}
	if b.role == RoleMessage && isMessage(a) {
		return true
	}
	return false
}

func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}
