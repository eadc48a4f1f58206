package contingent

import (
	"fmt"

	ddd "github.com/terraskye/ddd"
)

// InvalidQuantityError is returned for a quantity below one.
type InvalidQuantityError struct {
	Quantity int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("Quantity must be a positive integer, \"%d\" passed", e.Quantity)
}

func (e *InvalidQuantityError) Unwrap() error { return ddd.ErrBusinessRuleViolation }

type IncreaseUnlimitedContingentError struct {
	ContingentID ddd.ID
}

func (e *IncreaseUnlimitedContingentError) Error() string {
	return fmt.Sprintf("could not increase quantity of unlimited contingent %q", e.ContingentID)
}

func (e *IncreaseUnlimitedContingentError) Unwrap() error { return ddd.ErrBusinessRuleViolation }

type ReduceUnlimitedContingentError struct {
	ContingentID ddd.ID
}

func (e *ReduceUnlimitedContingentError) Error() string {
	return fmt.Sprintf("could not reduce quantity of unlimited contingent %q", e.ContingentID)
}

func (e *ReduceUnlimitedContingentError) Unwrap() error { return ddd.ErrBusinessRuleViolation }

type ContingentAlreadyLimitedError struct {
	ContingentID ddd.ID
	Quantity     int
}

func (e *ContingentAlreadyLimitedError) Error() string {
	return fmt.Sprintf("could not limit contingent %q to %d because it is already limited; increase or reduce it instead", e.ContingentID, e.Quantity)
}

func (e *ContingentAlreadyLimitedError) Unwrap() error { return ddd.ErrBusinessRuleViolation }

type NotEnoughContingentToSellError struct {
	ContingentID ddd.ID
	Quantity     int
	Available    int
}

func (e *NotEnoughContingentToSellError) Error() string {
	return fmt.Sprintf("could not sell %d of contingent %q because there are only %d left", e.Quantity, e.ContingentID, e.Available)
}

func (e *NotEnoughContingentToSellError) Unwrap() error { return ddd.ErrBusinessRuleViolation }

// ContingentNotFoundError is returned by the repository for an aggregate
// without history.
type ContingentNotFoundError struct {
	ContingentID ddd.ID
}

func (e *ContingentNotFoundError) Error() string {
	return fmt.Sprintf("could not find contingent entity with id %q", e.ContingentID)
}
