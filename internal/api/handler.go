package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	ddd "github.com/terraskye/ddd"
	"github.com/terraskye/ddd/contingent"
)

// Dispatcher sends a command to its handler.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd ddd.Command) error
}

// ContingentHandler serves the event organizing endpoints.
type ContingentHandler struct {
	bus   Dispatcher
	store ddd.EventStore
	repo  *contingent.Repository
}

func NewContingentHandler(bus Dispatcher, store ddd.EventStore, repo *contingent.Repository) *ContingentHandler {
	return &ContingentHandler{bus: bus, store: store, repo: repo}
}

type initializeRequest struct {
	Quantity *int `json:"quantity"`
}

type initializeResponse struct {
	ContingentID string `json:"contingentId"`
	EventID      string `json:"eventId"`
}

type quantityRequest struct {
	ContingentID string `json:"contingentId" binding:"required"`
	Quantity     int    `json:"quantity"`
}

type contingentRequest struct {
	ContingentID string `json:"contingentId" binding:"required"`
}

type eventResponse struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	AggregateID   string          `json:"aggregateId"`
	CorrelationID *string         `json:"correlationId"`
	CausationID   *string         `json:"causationId"`
	RaisedAt      time.Time       `json:"raisedAt"`
	Payload       json.RawMessage `json:"payload"`
}

// InitializeRandomContingent creates a contingent for a new ticketed event.
func (h *ContingentHandler) InitializeRandomContingent(c *gin.Context) {
	var req initializeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	cmd := &contingent.InitializeContingent{
		CommandBase:  ddd.NewCommandBase(),
		ContingentID: h.repo.NextID(),
		EventID:      ddd.NextID(contingent.TicketedEventKind),
		Quantity:     req.Quantity,
	}
	if err := h.bus.Dispatch(c.Request.Context(), cmd); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, initializeResponse{
		ContingentID: cmd.ContingentID.String(),
		EventID:      cmd.EventID.String(),
	})
}

// ReadContingentEvents returns the history of the contingent named by the
// contingentId query parameter.
func (h *ContingentHandler) ReadContingentEvents(c *gin.Context) {
	id, err := ddd.ParseID(contingent.Kind, c.Query("contingentId"))
	if err != nil {
		badRequest(c, err)
		return
	}

	stream, err := h.store.GetAggregateStream(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if stream.IsEmpty() {
		respondError(c, &contingent.ContingentNotFoundError{ContingentID: id})
		return
	}

	events := make([]eventResponse, 0, stream.Len())
	for _, ev := range stream.Events() {
		payload, err := ddd.EncodeEvent(ev)
		if err != nil {
			respondError(c, err)
			return
		}
		hdr := ddd.Header(ev)
		events = append(events, eventResponse{
			ID:            hdr.ID.String(),
			Type:          ddd.EventType(ev),
			AggregateID:   hdr.AggregateID.String(),
			CorrelationID: idString(hdr.CorrelationID),
			CausationID:   idString(hdr.CausationID),
			RaisedAt:      hdr.RaisedAt,
			Payload:       payload,
		})
	}
	c.JSON(http.StatusOK, gin.H{"contingentId": id.String(), "events": events})
}

func (h *ContingentHandler) IncreaseContingent(c *gin.Context) {
	h.dispatchQuantity(c, func(id ddd.ID, q int) ddd.Command {
		return &contingent.IncreaseContingent{CommandBase: ddd.NewCommandBase(), ContingentID: id, Quantity: q}
	})
}

func (h *ContingentHandler) ReduceContingent(c *gin.Context) {
	h.dispatchQuantity(c, func(id ddd.ID, q int) ddd.Command {
		return &contingent.ReduceContingent{CommandBase: ddd.NewCommandBase(), ContingentID: id, Quantity: q}
	})
}

func (h *ContingentHandler) LimitContingent(c *gin.Context) {
	h.dispatchQuantity(c, func(id ddd.ID, q int) ddd.Command {
		return &contingent.LimitContingent{CommandBase: ddd.NewCommandBase(), ContingentID: id, Quantity: q}
	})
}

func (h *ContingentHandler) SellContingent(c *gin.Context) {
	h.dispatchQuantity(c, func(id ddd.ID, q int) ddd.Command {
		return &contingent.SellContingent{CommandBase: ddd.NewCommandBase(), ContingentID: id, Quantity: q}
	})
}

func (h *ContingentHandler) SetContingentToUnlimited(c *gin.Context) {
	var req contingentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	id, err := ddd.ParseID(contingent.Kind, req.ContingentID)
	if err != nil {
		badRequest(c, err)
		return
	}
	h.dispatch(c, &contingent.SetContingentToUnlimited{CommandBase: ddd.NewCommandBase(), ContingentID: id})
}

func (h *ContingentHandler) dispatchQuantity(c *gin.Context, build func(id ddd.ID, quantity int) ddd.Command) {
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	id, err := ddd.ParseID(contingent.Kind, req.ContingentID)
	if err != nil {
		badRequest(c, err)
		return
	}
	h.dispatch(c, build(id, req.Quantity))
}

func (h *ContingentHandler) dispatch(c *gin.Context, cmd ddd.Command) {
	if err := h.bus.Dispatch(c.Request.Context(), cmd); err != nil {
		respondError(c, err)
		return
	}
	c.Header("X-Command-ID", cmd.MessageID().String())
	c.Status(http.StatusNoContent)
}

func badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// respondError maps domain and lookup errors to their status codes.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	var (
		notFound  *contingent.ContingentNotFoundError
		invalidID *ddd.InvalidIdentifierError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &notFound):
		status = http.StatusNotFound
	case errors.As(err, &invalidID):
		status = http.StatusBadRequest
	case errors.Is(err, ddd.ErrBusinessRuleViolation):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func idString(id *ddd.ID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
