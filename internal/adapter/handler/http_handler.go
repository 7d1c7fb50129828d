package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tradepost/negotiation/internal/auth"
	"github.com/tradepost/negotiation/internal/core/domain"
	"github.com/tradepost/negotiation/internal/core/service"
	"github.com/tradepost/negotiation/internal/relay"
)

const userIDKey = "userID"

type HTTPHandler struct {
	chat      *service.ChatService
	offers    *service.OfferService
	inventory *service.InventoryService
	snapshot  *service.SnapshotService
	relay     *relay.Relay
	auth      *auth.Authenticator
	logger    *zap.Logger
}

func NewHTTPHandler(
	chat *service.ChatService,
	offers *service.OfferService,
	inventory *service.InventoryService,
	snapshot *service.SnapshotService,
	rly *relay.Relay,
	authenticator *auth.Authenticator,
	logger *zap.Logger,
) *HTTPHandler {
	return &HTTPHandler{
		chat:      chat,
		offers:    offers,
		inventory: inventory,
		snapshot:  snapshot,
		relay:     rly,
		auth:      authenticator,
		logger:    logger,
	}
}

// Register wires all routes onto the router.
func (h *HTTPHandler) Register(r *gin.Engine) {
	r.GET("/health", h.HealthCheck)

	api := r.Group("/api", h.AuthRequired)
	{
		api.GET("/conversations", h.ListConversations)
		api.POST("/conversations", h.OpenConversation)
		api.GET("/conversations/:id/thread", h.LoadThread)
		api.POST("/conversations/:id/messages", h.SendMessage)
		api.POST("/conversations/:id/offers", h.CreateOffer)

		api.POST("/offers/:id/accept", h.AcceptOffer)
		api.POST("/offers/:id/reject", h.RejectOffer)
		api.POST("/offers/:id/withdraw", h.WithdrawOffer)
		api.POST("/offers/:id/reserve", h.ReserveOffer)

		api.GET("/products/:id/snapshot", h.ProductSnapshot)
		api.GET("/products/:id/availability", h.ProductAvailability)
		api.GET("/products/:id/reservations", h.ProductReservations)
	}

	r.GET("/ws/conversations/:id", h.AuthRequired, h.ConversationFeed)
}

// AuthRequired resolves the caller identity from the Authorization header
// (or, for websocket clients that cannot set headers, a token query param).
func (h *HTTPHandler) AuthRequired(c *gin.Context) {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if token == "" || token == c.GetHeader("Authorization") {
		token = c.Query("token")
	}
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return
	}

	userID, err := h.auth.ResolveUserID(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	c.Set(userIDKey, userID)
	c.Next()
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HTTPHandler) ListConversations(c *gin.Context) {
	convs, err := h.chat.ListConversations(c.Request.Context(), c.GetString(userIDKey))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

type openConversationRequest struct {
	SellerID  string `json:"seller_id" binding:"required"`
	ProductID string `json:"product_id"`
}

func (h *HTTPHandler) OpenConversation(c *gin.Context) {
	var req openConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	conv, err := h.chat.OpenOrCreateConversation(c.Request.Context(), c.GetString(userIDKey), req.SellerID, req.ProductID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (h *HTTPHandler) LoadThread(c *gin.Context) {
	thread, err := h.chat.LoadThread(c.Request.Context(), c.Param("id"), c.GetString(userIDKey))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, thread)
}

type sendMessageRequest struct {
	Body string `json:"body" binding:"required"`
}

func (h *HTTPHandler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	msg, err := h.chat.SendMessage(c.Request.Context(), c.Param("id"), c.GetString(userIDKey), req.Body)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

type createOfferRequest struct {
	Price float64 `json:"price" binding:"required"`
	Note  string  `json:"note"`
}

func (h *HTTPHandler) CreateOffer(c *gin.Context) {
	var req createOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	offer, err := h.offers.Create(c.Request.Context(), c.Param("id"), c.GetString(userIDKey), req.Price, req.Note)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, offer)
}

func (h *HTTPHandler) AcceptOffer(c *gin.Context) {
	offer, err := h.offers.Accept(c.Request.Context(), c.Param("id"), c.GetString(userIDKey))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, offer)
}

func (h *HTTPHandler) RejectOffer(c *gin.Context) {
	offer, err := h.offers.Reject(c.Request.Context(), c.Param("id"), c.GetString(userIDKey))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, offer)
}

func (h *HTTPHandler) WithdrawOffer(c *gin.Context) {
	offer, err := h.offers.Withdraw(c.Request.Context(), c.Param("id"), c.GetString(userIDKey))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, offer)
}

type reserveOfferRequest struct {
	Quantity int `json:"quantity" binding:"required"`
}

func (h *HTTPHandler) ReserveOffer(c *gin.Context) {
	var req reserveOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	offer, order, err := h.offers.Reserve(c.Request.Context(), c.Param("id"), c.GetString(userIDKey), req.Quantity)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"offer": offer, "order": order})
}

func (h *HTTPHandler) ProductSnapshot(c *gin.Context) {
	snap := h.snapshot.Snapshot(c.Request.Context(), c.Param("id"))
	if snap == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *HTTPHandler) ProductAvailability(c *gin.Context) {
	available, err := h.inventory.AvailableQuantity(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product_id": c.Param("id"), "available": available})
}

func (h *HTTPHandler) ProductReservations(c *gin.Context) {
	reservations, err := h.inventory.Reservations(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, reservations)
}

// fail maps domain errors to HTTP statuses without leaking internals.
func (h *HTTPHandler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotAuthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotAuthorized):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrAlreadyReserved):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInsufficientInventory):
		status = http.StatusGone
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
