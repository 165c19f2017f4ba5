package handlers

import (
	"net/http"
	"strconv"

	"example.com/backstage/services/fridge/internal/apperrors"
	"example.com/backstage/services/fridge/internal/models"
	"example.com/backstage/services/fridge/internal/services"
	"example.com/backstage/services/fridge/internal/tracing"

	"github.com/gin-gonic/gin"
)

// OrderHandler manages weekly order lines and order finalization
type OrderHandler struct {
	ledger     *services.OrderLedger
	reconciler *services.InventoryReconciler
	tracer     tracing.Tracer
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(ledger *services.OrderLedger, reconciler *services.InventoryReconciler, tracer tracing.Tracer) *OrderHandler {
	return &OrderHandler{ledger: ledger, reconciler: reconciler, tracer: tracer}
}

// AddLinesRequest carries either one line or a batch under items
type AddLinesRequest struct {
	ProductID *int                 `json:"productID"`
	Quantity  *int                 `json:"quantity"`
	Items     []services.LineInput `json:"items"`
}

// EditLineRequest changes the quantity of a line
type EditLineRequest struct {
	Quantity int `json:"quantity" binding:"required"`
}

// AddRequest converts the body into a single or batch request
func (r AddLinesRequest) AddRequest() (services.AddRequest, error) {
	switch {
	case r.Items != nil && r.ProductID != nil:
		return nil, apperrors.InvalidArgument("send either productID or items, not both")
	case r.Items != nil:
		if len(r.Items) == 0 {
			return nil, apperrors.InvalidArgument("items must not be empty")
		}
		return services.BatchLines{Lines: r.Items}, nil
	case r.ProductID != nil:
		if r.Quantity == nil {
			return nil, apperrors.InvalidArgument("quantity is required")
		}
		return services.SingleLine{ProductID: *r.ProductID, Quantity: *r.Quantity}, nil
	default:
		return nil, apperrors.InvalidArgument("productID and quantity, or items, are required")
	}
}

// HandleCurrentOrder lists this week's order
func (h *OrderHandler) HandleCurrentOrder(c *gin.Context) {
	h.listLines(c, h.ledger.CurrentOrderID())
}

// HandleGetOrder lists the lines of an order with catalog details
func (h *OrderHandler) HandleGetOrder(c *gin.Context) {
	h.listLines(c, c.Param("orderID"))
}

func (h *OrderHandler) listLines(c *gin.Context, orderID string) {
	lines, err := h.ledger.ListLines(requestContext(c), orderID, c.Query("catalog") != "false")
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Order "+orderID, lines)
}

// HandleAddLines adds one or more products to an order
func (h *OrderHandler) HandleAddLines(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-add-order-lines")
	defer h.tracer.EndTransaction(txn)

	orderID := c.Param("orderID")
	h.tracer.AddAttribute(txn, "order_id", orderID)

	var body AddLinesRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	req, err := body.AddRequest()
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := h.ledger.Add(requestContext(c), orderID, req, models.TriggerUser)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	message := "Products added to order"
	if len(result.Rejected) > 0 {
		message = "Some products could not be added to order"
	}
	respond(c, http.StatusCreated, message, result)
}

// HandleEditLine changes the quantity of a line
func (h *OrderHandler) HandleEditLine(c *gin.Context) {
	productID, err := strconv.Atoi(c.Param("productID"))
	if err != nil {
		respondError(c, apperrors.InvalidArgument("product id must be an integer"))
		return
	}

	var req EditLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	line, err := h.ledger.EditLine(requestContext(c), c.Param("orderID"), productID, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Order line updated", line)
}

// HandleRemoveLine deletes a line
func (h *OrderHandler) HandleRemoveLine(c *gin.Context) {
	productID, err := strconv.Atoi(c.Param("productID"))
	if err != nil {
		respondError(c, apperrors.InvalidArgument("product id must be an integer"))
		return
	}

	if err := h.ledger.RemoveLine(requestContext(c), c.Param("orderID"), productID); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Order line removed", nil)
}

// HandleFinalize merges a delivered order into inventory
func (h *OrderHandler) HandleFinalize(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-finalize-order")
	defer h.tracer.EndTransaction(txn)

	orderID := c.Param("orderID")
	h.tracer.AddAttribute(txn, "order_id", orderID)

	result, err := h.reconciler.Finalize(requestContext(c), orderID)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Order "+orderID+" completed", result)
}

// RegisterRoutes registers the handler's routes
func (h *OrderHandler) RegisterRoutes(router gin.IRouter) {
	router.GET("/orders/current", h.HandleCurrentOrder)
	router.GET("/orders/:orderID", h.HandleGetOrder)
	router.POST("/orders/:orderID/lines", h.HandleAddLines)
	router.PATCH("/orders/:orderID/lines/:productID", h.HandleEditLine)
	router.DELETE("/orders/:orderID/lines/:productID", h.HandleRemoveLine)
	router.POST("/orders/:orderID/finalize", h.HandleFinalize)
}
