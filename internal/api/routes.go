package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/farmlink/farmlink/internal/marketplace"
	"github.com/farmlink/farmlink/internal/notify"
	"github.com/farmlink/farmlink/internal/wire"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// maxIdempotencyKeyLen matches the idempotency_keys.key column.
const maxIdempotencyKeyLen = 64

const notifyTimeout = 5 * time.Second

type handlers struct {
	db       *gorm.DB
	log      *zap.Logger
	notifier notify.Notifier
}

// registerRoutes sets up all API routes on the gin router.
func registerRoutes(router *gin.Engine, h *handlers, limiter *rateLimiter) {
	router.GET("/healthz", handleHealth)

	group := router.Group("/negotiations", requireIdentity())
	if limiter != nil {
		group.Use(limiter.middleware())
	}
	group.GET("/:id", h.getNegotiation)
	group.PUT("/:id", h.updateNegotiation)
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handlers) getNegotiation(c *gin.Context) {
	n, err := marketplace.Get(h.db, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if !marketplace.IsParticipant(n, c.GetString(ctxUserID)) {
		h.fail(c, marketplace.ErrNotParticipant)
		return
	}
	c.JSON(http.StatusOK, toWire(n))
}

func (h *handlers) updateNegotiation(c *gin.Context) {
	var req wire.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, wire.ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	key := c.GetHeader(wire.HeaderIdempotencyKey)
	if len(key) > maxIdempotencyKeyLen {
		c.JSON(http.StatusBadRequest, wire.ErrorResponse{Error: wire.HeaderIdempotencyKey + " is too long"})
		return
	}

	id := c.Param("id")
	actor := c.GetString(ctxUserID)
	res, err := marketplace.Update(h.db, id, actor, marketplace.UpdateOpts{
		Message:        req.Message,
		Price:          req.Price,
		Quantity:       req.Quantity,
		Status:         req.Status,
		IdempotencyKey: key,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	if res.Replayed {
		h.log.Debug("idempotent replay", zap.String("negotiation", id), zap.String("key", key))
	} else {
		h.notify(c.Request.Context(), res.Event)
	}
	c.JSON(http.StatusOK, toWire(res.Negotiation))
}

// notify delivers ev, logging instead of failing the request.
func (h *handlers) notify(ctx context.Context, ev marketplace.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := h.notifier.Notify(ctx, ev); err != nil {
		h.log.Warn("notification failed", zap.String("negotiation", ev.NegotiationID), zap.Error(err))
	}
}

// fail renders err with its mapped status code.
func (h *handlers) fail(c *gin.Context, err error) {
	code := statusFor(err)
	msg := rootMessage(err)
	if code == http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		msg = "internal error"
	}
	c.JSON(code, wire.ErrorResponse{Error: msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, marketplace.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, marketplace.ErrNotParticipant), errors.Is(err, marketplace.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, marketplace.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, marketplace.ErrInvalidStatus),
		errors.Is(err, marketplace.ErrInvalidCounterOffer),
		errors.Is(err, marketplace.ErrInvalidAmount),
		errors.Is(err, marketplace.ErrNothingToUpdate):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// rootMessage returns the bare sentinel text for known errors. Transition
// errors keep their detail about the valid targets.
func rootMessage(err error) string {
	for _, sentinel := range []error{
		marketplace.ErrNotFound,
		marketplace.ErrNotParticipant,
		marketplace.ErrNotOwner,
		marketplace.ErrInvalidStatus,
		marketplace.ErrInvalidCounterOffer,
		marketplace.ErrInvalidAmount,
		marketplace.ErrNothingToUpdate,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}
