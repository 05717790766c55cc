package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/core/service"
	"github.com/rl1809/stock-ledger/internal/port"
)

type HTTPHandler struct {
	movements *service.MovementService
	queries   *service.QueryService
	catalog   *service.CatalogService
}

func NewHTTPHandler(movements *service.MovementService, queries *service.QueryService, catalog *service.CatalogService) *HTTPHandler {
	return &HTTPHandler{movements: movements, queries: queries, catalog: catalog}
}

func (h *HTTPHandler) Register(r *gin.Engine) {
	r.GET("/health", h.healthCheck)

	api := r.Group("/api")
	api.POST("/products", h.createProduct)
	api.GET("/products", h.listProducts)
	api.DELETE("/products/:id", h.deleteProduct)
	api.POST("/stores", h.createStore)
	api.GET("/stores", h.listStores)
	api.POST("/movements", h.createMovement)
	api.GET("/movements", h.listMovements)
	api.POST("/transfers", h.createTransfer)
	api.GET("/inventory/:store_id", h.getInventory)
}

type createProductRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
}

type createStoreRequest struct {
	Name     string  `json:"name" binding:"required"`
	Location *string `json:"location"`
}

// Movement fields are validated by the service so a rejection carries the
// specific reason (zero quantity, unknown product) instead of a generic
// binding error.
type createMovementRequest struct {
	ProductID     int64  `json:"product_id"`
	StoreID       int64  `json:"store_id"`
	Type          string `json:"type"`
	Direction     string `json:"direction"`
	Quantity      int    `json:"quantity"`
	Notes         string `json:"notes"`
	CorrelationID string `json:"correlation_id"`
}

type createTransferRequest struct {
	ProductID   int64  `json:"product_id"`
	FromStoreID int64  `json:"from_store_id"`
	ToStoreID   int64  `json:"to_store_id"`
	Quantity    int    `json:"quantity"`
	Notes       string `json:"notes"`
}

func (h *HTTPHandler) createProduct(c *gin.Context) {
	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"reason": "invalid request body"})
		return
	}
	p, err := h.catalog.CreateProduct(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *HTTPHandler) listProducts(c *gin.Context) {
	products, err := h.catalog.ListProducts(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *HTTPHandler) deleteProduct(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"reason": "invalid product id"})
		return
	}
	confirmed := c.Query("confirm") == "true"
	if err := h.catalog.DeleteProduct(c.Request.Context(), id, confirmed); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) createStore(c *gin.Context) {
	var req createStoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"reason": "invalid request body"})
		return
	}
	st, err := h.catalog.CreateStore(c.Request.Context(), req.Name, req.Location)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, st)
}

func (h *HTTPHandler) listStores(c *gin.Context) {
	stores, err := h.catalog.ListStores(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stores)
}

func (h *HTTPHandler) createMovement(c *gin.Context) {
	var req createMovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"reason": "invalid request body"})
		return
	}
	accepted, err := h.movements.Submit(c.Request.Context(), service.SubmitRequest{
		ProductID:     req.ProductID,
		StoreID:       req.StoreID,
		Type:          domain.MovementType(req.Type),
		Direction:     domain.Direction(req.Direction),
		Quantity:      req.Quantity,
		Notes:         req.Notes,
		CorrelationID: req.CorrelationID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":         "accepted",
		"new_stock":      accepted.NewStock,
		"correlation_id": accepted.Movement.CorrelationID,
	})
}

func (h *HTTPHandler) createTransfer(c *gin.Context) {
	var req createTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"reason": "invalid request body"})
		return
	}
	res, err := h.movements.Transfer(c.Request.Context(), service.TransferRequest{
		ProductID:   req.ProductID,
		FromStoreID: req.FromStoreID,
		ToStoreID:   req.ToStoreID,
		Quantity:    req.Quantity,
		Notes:       req.Notes,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":         "accepted",
		"correlation_id": res.CorrelationID,
		"from_stock":     res.FromStock,
		"to_stock":       res.ToStock,
	})
}

func (h *HTTPHandler) getInventory(c *gin.Context) {
	storeID, err := strconv.ParseInt(c.Param("store_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"reason": "invalid store id"})
		return
	}
	view, err := h.queries.GetInventory(c.Request.Context(), storeID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"source": view.Source, "data": view.Items})
}

func (h *HTTPHandler) listMovements(c *gin.Context) {
	var f port.MovementFilter
	if v := c.Query("product_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"reason": "invalid product id"})
			return
		}
		f.ProductID = id
	}
	if v := c.Query("store_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"reason": "invalid store id"})
			return
		}
		f.StoreID = id
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"reason": "invalid limit"})
			return
		}
		f.Limit = n
	}
	movements, err := h.queries.GetHistory(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, movements)
}

func (h *HTTPHandler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	reason := "internal error"

	switch {
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidType),
		errors.Is(err, domain.ErrInvalidDirection),
		errors.Is(err, service.ErrSameStore),
		errors.Is(err, service.ErrEmptyName),
		errors.Is(err, service.ErrDeleteNotConfirmed):
		status, reason = http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrInsufficientStock):
		status, reason = http.StatusBadRequest, domain.ErrInsufficientStock.Error()
	case errors.Is(err, domain.ErrProductNotFound), errors.Is(err, domain.ErrStoreNotFound):
		status, reason = http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrDuplicateProduct):
		status, reason = http.StatusConflict, domain.ErrDuplicateProduct.Error()
	case errors.Is(err, domain.ErrDuplicateMovement):
		status, reason = http.StatusConflict, domain.ErrDuplicateMovement.Error()
	case errors.Is(err, domain.ErrStorageBusy):
		status, reason = http.StatusServiceUnavailable, "storage busy, retry later"
	}

	c.JSON(status, gin.H{"reason": reason})
}
