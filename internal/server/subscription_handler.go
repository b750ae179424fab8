package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dietkit/notify/internal/domain/recipient"
	"github.com/dietkit/notify/internal/domain/subscription"
)

type registerRequest struct {
	Channel  string `json:"channel" binding:"required"`
	Endpoint string `json:"endpoint"`
	Token    string `json:"token"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// RegisterSubscription upserts a delivery endpoint for the
// authenticated recipient. Re-registration of a known endpoint is
// idempotent; an endpoint previously owned by another recipient is
// rebound.
func (h *Handlers) RegisterSubscription(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	sub := &subscription.Subscription{
		RecipientID: RecipientID(c),
		Channel:     subscription.Channel(req.Channel),
	}
	switch sub.Channel {
	case subscription.ChannelWebPush:
		if req.Endpoint == "" || req.Keys.P256dh == "" || req.Keys.Auth == "" {
			fail(c, http.StatusBadRequest, "webpush registration requires endpoint, keys.p256dh and keys.auth", nil)
			return
		}
		sub.Endpoint = req.Endpoint
		sub.Keys = subscription.Keys{P256dh: req.Keys.P256dh, Auth: req.Keys.Auth}
	case subscription.ChannelMobile:
		if req.Token == "" {
			fail(c, http.StatusBadRequest, "mobile registration requires token", nil)
			return
		}
		sub.Endpoint = req.Token
	default:
		fail(c, http.StatusBadRequest, "unknown channel", nil)
		return
	}

	if err := h.Registry.Upsert(c.Request.Context(), sub); err != nil {
		h.Log.Error("subscription upsert", zap.Error(err))
		fail(c, http.StatusInternalServerError, "could not store subscription", nil)
		return
	}
	ok(c, http.StatusOK, gin.H{"id": sub.ID})
}

type deregisterRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// DeregisterSubscription removes the caller's own subscription for the
// given endpoint. Someone else's endpoint is silently left alone.
func (h *Handlers) DeregisterSubscription(c *gin.Context) {
	var req deregisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if err := h.Registry.RemoveOwned(c.Request.Context(), RecipientID(c), req.Endpoint); err != nil {
		h.Log.Error("subscription remove", zap.Error(err))
		fail(c, http.StatusInternalServerError, "could not remove subscription", nil)
		return
	}
	ok(c, http.StatusOK, nil)
}

// PurgeRecipientSubscriptions drops every endpoint of one recipient.
// Called by the main application when it deletes the account, so it is
// guarded by the shared secret rather than a user token.
func (h *Handlers) PurgeRecipientSubscriptions(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, "invalid recipient id", nil)
		return
	}

	if err := h.Registry.RemoveByRecipient(c.Request.Context(), id); err != nil {
		h.Log.Error("subscription purge", zap.Int64("recipient_id", id), zap.Error(err))
		fail(c, http.StatusInternalServerError, "could not remove subscriptions", nil)
		return
	}
	ok(c, http.StatusOK, nil)
}

type preferenceRequest struct {
	MealReminders *bool `json:"meal_reminders" binding:"required"`
	DietUpdates   *bool `json:"diet_updates" binding:"required"`
	Messages      *bool `json:"messages" binding:"required"`
}

func (h *Handlers) UpdatePreferences(c *gin.Context) {
	var req preferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	p := &recipient.Preference{
		RecipientID:   RecipientID(c),
		MealReminders: *req.MealReminders,
		DietUpdates:   *req.DietUpdates,
		Messages:      *req.Messages,
	}
	if err := h.Prefs.Upsert(c.Request.Context(), p); err != nil {
		h.Log.Error("preference upsert", zap.Error(err))
		fail(c, http.StatusInternalServerError, "could not store preferences", nil)
		return
	}
	ok(c, http.StatusOK, p)
}
