package contingent

import ddd "github.com/terraskye/ddd"

// ContingentInitialized starts the history of a contingent. A nil
// Quantity is an unlimited contingent.
type ContingentInitialized struct {
	ddd.EventBase
	EventID  string `json:"eventId"`
	Quantity *int   `json:"quantity"`
}

type ContingentIncreased struct {
	ddd.EventBase
	Quantity int `json:"quantity"`
}

type ContingentReduced struct {
	ddd.EventBase
	Quantity int `json:"quantity"`
}

type ContingentSetToUnlimited struct {
	ddd.EventBase
}

type ContingentLimited struct {
	ddd.EventBase
	Quantity int `json:"quantity"`
}

type ContingentSold struct {
	ddd.EventBase
	Quantity int `json:"quantity"`
}

// RegisterEvents adds every contingent event to m.
func RegisterEvents(m *ddd.EventConstructorMap) *ddd.EventConstructorMap {
	ddd.RegisterEvent[ContingentInitialized](m)
	ddd.RegisterEvent[ContingentIncreased](m)
	ddd.RegisterEvent[ContingentReduced](m)
	ddd.RegisterEvent[ContingentSetToUnlimited](m)
	ddd.RegisterEvent[ContingentLimited](m)
	ddd.RegisterEvent[ContingentSold](m)
	return m
}
