package handlers

import (
	"net/http"

	"example.com/backstage/services/fridge/internal/apperrors"
	"example.com/backstage/services/fridge/internal/models"
	"example.com/backstage/services/fridge/internal/services"
	"example.com/backstage/services/fridge/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DeliveryHandler serves driver logins and delivery confirmations
type DeliveryHandler struct {
	confirmation *services.ConfirmationEngine
	tracer       tracing.Tracer
}

// NewDeliveryHandler creates a new delivery handler
func NewDeliveryHandler(confirmation *services.ConfirmationEngine, tracer tracing.Tracer) *DeliveryHandler {
	return &DeliveryHandler{confirmation: confirmation, tracer: tracer}
}

// LoginRequest is a driver's access code
type LoginRequest struct {
	AccessCode int `json:"accessCode" binding:"required"`
}

// ConfirmRequest lists what the driver put in the fridge. delivered must be
// present, even if empty.
type ConfirmRequest struct {
	Delivered   []int   `json:"delivered"`
	Undelivered []int   `json:"undelivered"`
	Notes       *string `json:"notes"`
}

// DeliveryResponse is the driver's view of a delivery
type DeliveryResponse struct {
	DeliveryID       uuid.UUID             `json:"deliveryID"`
	OrderID          string                `json:"orderID"`
	Status           models.DeliveryStatus `json:"status"`
	ItemsToDeliver   int                   `json:"itemsToDeliver"`
	ItemsUndelivered int                   `json:"itemsUndelivered"`
	TotalCost        string                `json:"totalCost"`
	IsDelivered      bool                  `json:"isDelivered"`
}

func newDeliveryResponse(d *models.Delivery) DeliveryResponse {
	return DeliveryResponse{
		DeliveryID:       d.DeliveryID,
		OrderID:          d.OrderID,
		Status:           d.Status,
		ItemsToDeliver:   d.ItemsToDeliver,
		ItemsUndelivered: d.ItemsUndelivered,
		TotalCost:        d.TotalCost,
		IsDelivered:      d.IsDelivered,
	}
}

// HandleLogin authenticates a driver and starts the delivery
func (h *DeliveryHandler) HandleLogin(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-driver-login")
	defer h.tracer.EndTransaction(txn)

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	delivery, err := h.confirmation.RecordDriverLogin(requestContext(c), req.AccessCode)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}
	h.tracer.AddAttribute(txn, "order_id", delivery.OrderID)

	respond(c, http.StatusOK, "Delivery in process", newDeliveryResponse(delivery))
}

// HandleConfirm records which lines were delivered
func (h *DeliveryHandler) HandleConfirm(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-confirm-delivery")
	defer h.tracer.EndTransaction(txn)

	id, err := uuid.Parse(c.Param("deliveryID"))
	if err != nil {
		respondError(c, apperrors.InvalidArgument("delivery id must be a uuid"))
		return
	}

	var req ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h.tracer.AddAttribute(txn, "delivery_id", id.String())

	delivery, err := h.confirmation.ConfirmDelivery(requestContext(c), services.ConfirmRequest{
		DeliveryID:  id,
		Delivered:   req.Delivered,
		Undelivered: req.Undelivered,
		Notes:       req.Notes,
	})
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, "Delivery confirmed", newDeliveryResponse(delivery))
}

// RegisterRoutes registers the handler's routes
func (h *DeliveryHandler) RegisterRoutes(router gin.IRouter) {
	router.POST("/deliveries/login", h.HandleLogin)
	router.POST("/deliveries/:deliveryID/confirm", h.HandleConfirm)
}
