package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RunMealReminders is invoked by cron or opportunistically by an
// authenticated client on app open; the latter is scoped to the
// caller's own plan.
func (h *Handlers) RunMealReminders(c *gin.Context) {
	ctx := c.Request.Context()

	if IsCronCaller(c) {
		out, err := h.Meal.Run(ctx)
		if err != nil {
			h.Log.Error("meal reminder run", zap.Error(err))
			fail(c, http.StatusInternalServerError, "trigger failed", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "sent": out.Sent, "failed": out.Failed, "remindersFound": out.RemindersFound})
		return
	}

	out, err := h.Meal.RunFor(ctx, RecipientID(c))
	if err != nil {
		h.Log.Error("meal reminder run", zap.Int64("recipient_id", RecipientID(c)), zap.Error(err))
		fail(c, http.StatusInternalServerError, "trigger failed", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "sent": out.Sent, "failed": out.Failed, "remindersFound": out.RemindersFound})
}

func (h *Handlers) RunBirthdays(c *gin.Context) {
	out, err := h.Birthday.Run(c.Request.Context())
	if err != nil {
		h.Log.Error("birthday run", zap.Error(err))
		fail(c, http.StatusInternalServerError, "trigger failed", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "sent": out.Sent, "failed": out.Failed, "eligible": out.Eligible})
}

func (h *Handlers) RunNewDiets(c *gin.Context) {
	out, err := h.NewDiet.Run(c.Request.Context())
	if err != nil {
		h.Log.Error("new-diet run", zap.Error(err))
		fail(c, http.StatusInternalServerError, "trigger failed", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "sent": out.Sent, "failed": out.Failed, "found": out.Found})
}

func (h *Handlers) RunCleanup(c *gin.Context) {
	out, err := h.Cleanup.Run(c.Request.Context())
	if err != nil {
		h.Log.Error("cleanup run", zap.Error(err))
		fail(c, http.StatusInternalServerError, "trigger failed", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deleted": out.Deleted})
}
