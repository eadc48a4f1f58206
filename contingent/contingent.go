// Package contingent is the ticket contingent of an organized event: an
// optionally limited quantity of which tickets are sold.
package contingent

import (
	"fmt"

	ddd "github.com/terraskye/ddd"
)

var (
	Kind              = ddd.AggregateKind("Contingent")
	TicketedEventKind = ddd.EntityKind("TicketedEvent")
)

// Contingent is the aggregate root. A nil quantity means unlimited.
type Contingent struct {
	ddd.AggregateRoot
	eventID      ddd.ID
	quantity     *int
	soldQuantity int
}

// Initialize creates a contingent for the ticketed event eventID.
func Initialize(id, eventID ddd.ID, quantity *int) (*Contingent, error) {
	if quantity != nil {
		if err := assertPositive(*quantity); err != nil {
			return nil, err
		}
	}

	ev, err := ddd.NewEvent(&ContingentInitialized{
		EventID:  eventID.String(),
		Quantity: copyQuantity(quantity),
	}, id)
	if err != nil {
		return nil, err
	}

	c := &Contingent{}
	if err := ddd.RaiseAndApply(c, ev); err != nil {
		return nil, err
	}
	return c, nil
}

// FromStream rebuilds a contingent from its history.
func FromStream(stream ddd.AggregateEventStream) (*Contingent, error) {
	c := &Contingent{}
	if err := ddd.Replay(c, stream); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Contingent) EventID() ddd.ID { return c.eventID }

func (c *Contingent) IsLimited() bool { return c.quantity != nil }

func (c *Contingent) IsUnlimited() bool { return c.quantity == nil }

// Quantity returns the limit and whether there is one.
func (c *Contingent) Quantity() (int, bool) {
	if c.quantity == nil {
		return 0, false
	}
	return *c.quantity, true
}

func (c *Contingent) SoldQuantity() int { return c.soldQuantity }

// AvailableQuantity returns what is left to sell. ok is false for an
// unlimited contingent.
func (c *Contingent) AvailableQuantity() (available int, ok bool) {
	if c.quantity == nil {
		return 0, false
	}
	return *c.quantity - c.soldQuantity, true
}

func (c *Contingent) Increase(quantity int) error {
	if c.IsUnlimited() {
		return &IncreaseUnlimitedContingentError{ContingentID: c.ID()}
	}
	if err := assertPositive(quantity); err != nil {
		return err
	}
	return c.raise(&ContingentIncreased{Quantity: quantity})
}

// Reduce lowers the limit. Reducing to zero or below lifts the limit
// instead.
func (c *Contingent) Reduce(quantity int) error {
	if c.IsUnlimited() {
		return &ReduceUnlimitedContingentError{ContingentID: c.ID()}
	}
	if err := assertPositive(quantity); err != nil {
		return err
	}
	if *c.quantity-quantity <= 0 {
		return c.SetToUnlimited()
	}
	return c.raise(&ContingentReduced{Quantity: quantity})
}

func (c *Contingent) SetToUnlimited() error {
	if c.IsUnlimited() {
		return nil
	}
	return c.raise(&ContingentSetToUnlimited{})
}

func (c *Contingent) Limit(quantity int) error {
	if c.IsLimited() {
		return &ContingentAlreadyLimitedError{ContingentID: c.ID(), Quantity: quantity}
	}
	if err := assertPositive(quantity); err != nil {
		return err
	}
	return c.raise(&ContingentLimited{Quantity: quantity})
}

func (c *Contingent) Sell(quantity int) error {
	if err := assertPositive(quantity); err != nil {
		return err
	}
	if available, ok := c.AvailableQuantity(); ok && available < quantity {
		return &NotEnoughContingentToSellError{ContingentID: c.ID(), Quantity: quantity, Available: available}
	}
	return c.raise(&ContingentSold{Quantity: quantity})
}

func (c *Contingent) Apply(ev ddd.Event) error {
	switch e := ev.(type) {
	case *ContingentInitialized:
		eventID, err := ddd.ParseID(TicketedEventKind, e.EventID)
		if err != nil {
			return fmt.Errorf("ticketed event of contingent %s: %w", e.AggregateID(), err)
		}
		c.Initialize(e.AggregateID(), e.RaisedAt())
		c.eventID = eventID
		c.quantity = copyQuantity(e.Quantity)
		c.soldQuantity = 0
	case *ContingentIncreased:
		*c.quantity += e.Quantity
	case *ContingentReduced:
		*c.quantity -= e.Quantity
	case *ContingentSetToUnlimited:
		c.quantity = nil
	case *ContingentLimited:
		c.quantity = copyQuantity(&e.Quantity)
	case *ContingentSold:
		c.soldQuantity += e.Quantity
	default:
		return &ddd.MissingApplyHandlerError{Aggregate: "Contingent", Event: ddd.EventType(ev)}
	}
	return nil
}

func (c *Contingent) raise(ev ddd.Event) error {
	ev, err := ddd.NewEvent(ev, c.ID())
	if err != nil {
		return err
	}
	return ddd.RaiseAndApply(c, ev)
}

func assertPositive(quantity int) error {
	if quantity < 1 {
		return &InvalidQuantityError{Quantity: quantity}
	}
	return nil
}

func copyQuantity(q *int) *int {
	if q == nil {
		return nil
	}
	v := *q
	return &v
}
