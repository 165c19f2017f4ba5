package handlers

import (
	"net/http"

	"example.com/backstage/services/fridge/internal/services"
	"example.com/backstage/services/fridge/internal/tracing"

	"github.com/gin-gonic/gin"
)

// InventoryHandler serves the catalog and the fridge stock
type InventoryHandler struct {
	inventory *services.InventoryService
	tracer    tracing.Tracer
}

// NewInventoryHandler creates a new inventory handler
func NewInventoryHandler(inventory *services.InventoryService, tracer tracing.Tracer) *InventoryHandler {
	return &InventoryHandler{inventory: inventory, tracer: tracer}
}

// ReceiveRequest adds delivered or bought stock
type ReceiveRequest struct {
	ItemID   int    `json:"itemID" binding:"required"`
	Quantity int    `json:"quantity" binding:"required"`
	Expiry   string `json:"expiry" binding:"required"`
}

// ConsumeRequest removes stock taken from the fridge
type ConsumeRequest struct {
	ItemID   int `json:"itemID" binding:"required"`
	Quantity int `json:"quantity" binding:"required"`
}

// HandleListProducts returns the catalog, or only stocked products with
// ?instock=true
func (h *InventoryHandler) HandleListProducts(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-list-products")
	defer h.tracer.EndTransaction(txn)

	if c.Query("instock") == "true" {
		products, err := h.inventory.ProductsInStock(requestContext(c))
		if err != nil {
			h.tracer.RecordError(txn, err)
			respondError(c, err)
			return
		}
		respond(c, http.StatusOK, "Products in stock", products)
		return
	}

	products, err := h.inventory.Products(requestContext(c))
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Products", products)
}

// HandleGetProduct looks products up by name
func (h *InventoryHandler) HandleGetProduct(c *gin.Context) {
	products, err := h.inventory.ProductsByName(requestContext(c), c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Products", products)
}

// HandleListInventory returns every inventory item
func (h *InventoryHandler) HandleListInventory(c *gin.Context) {
	items, err := h.inventory.List(requestContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Inventory", items)
}

// HandleReceive adds stock to an item
func (h *InventoryHandler) HandleReceive(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-receive-stock")
	defer h.tracer.EndTransaction(txn)

	var req ReceiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h.tracer.AddAttribute(txn, "item_id", req.ItemID)

	item, err := h.inventory.Receive(requestContext(c), req.ItemID, req.Quantity, req.Expiry)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Stock received", item)
}

// HandleConsume removes stock from an item
func (h *InventoryHandler) HandleConsume(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-consume-stock")
	defer h.tracer.EndTransaction(txn)

	var req ConsumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h.tracer.AddAttribute(txn, "item_id", req.ItemID)

	item, err := h.inventory.Consume(requestContext(c), req.ItemID, req.Quantity)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Stock removed", item)
}

// RegisterRoutes registers the handler's routes
func (h *InventoryHandler) RegisterRoutes(router gin.IRouter) {
	router.GET("/products", h.HandleListProducts)
	router.GET("/products/:name", h.HandleGetProduct)
	router.GET("/inventory", h.HandleListInventory)
	router.POST("/inventory/receive", h.HandleReceive)
	router.POST("/inventory/consume", h.HandleConsume)
}
