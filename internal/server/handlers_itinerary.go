package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tripplanner/internal/itinerary"
	"tripplanner/internal/quota"
)

func (h *handlers) usage(c *gin.Context) {
	user := currentUser(c)
	remaining, err := h.Quota.Remaining(c.Request.Context(), user)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"free_uses_remaining": remaining,
		"plan":                user.Plan,
		"last_reset":          quota.DayStart(h.Quota.Now()).Format("2006-01-02"),
	})
}

func (h *handlers) proAccess(c *gin.Context) {
	user := currentUser(c)
	remaining, err := h.Quota.Remaining(c.Request.Context(), user)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"is_pro":              user.IsPro(),
		"plan":                user.Plan,
		"unlimited_access":    user.IsPro(),
		"free_uses_remaining": remaining,
	})
}

func (h *handlers) generateItinerary(c *gin.Context) {
	var req itinerary.Request
	if !h.bind(c, &req) {
		return
	}

	res, err := h.Itineraries.Generate(c.Request.Context(), currentUser(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":             true,
		"itinerary":           res.Content,
		"itinerary_id":        res.ItineraryID,
		"free_uses_remaining": res.FreeUsesRemaining,
		"source":              res.Source,
	})
}

func (h *handlers) listItineraries(c *gin.Context) {
	items, err := h.Itineraries.List(c.Request.Context(), currentUser(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "itineraries": items})
}

func (h *handlers) getItinerary(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	it, err := h.Itineraries.Get(c.Request.Context(), currentUser(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "itinerary": it})
}

func (h *handlers) suggestInterests(c *gin.Context) {
	var body struct {
		Destinations []string `json:"destinations"`
	}
	if !h.bind(c, &body) {
		return
	}
	interests := h.Itineraries.SuggestInterests(c.Request.Context(), body.Destinations)
	if interests == nil {
		interests = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"interests": interests})
}
