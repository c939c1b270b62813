package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/roamly/experience-booking/internal/service"
)

// availabilityTTL bounds how stale the cached availability read may
// be.  Mutations invalidate eagerly; the TTL is the backstop.
const availabilityTTL = 10 * time.Second

func availabilityKey(sessionID uint64) string {
	return fmt.Sprintf("avail:%d", sessionID)
}

// invalidateAvailability drops the cached availability for a session.
// Best effort: a cache miss is always safe.
func invalidateAvailability(c echo.Context, rdb *redis.Client, sessionID uint64) {
	if rdb == nil {
		return
	}
	rdb.Del(c.Request().Context(), availabilityKey(sessionID))
}

// SessionHandler exposes session capacity management and the public
// availability read.
type SessionHandler struct {
	Capacity *service.CapacityService
	Redis    *redis.Client // nil disables the availability cache
}

// Availability handles GET /v1/sessions/:id/availability.  The read
// is served from Redis when possible; admissions never consult it.
func (h *SessionHandler) Availability(c echo.Context) error {
	sessionID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}

	type availability struct {
		SessionID uint64 `json:"session_id"`
		Capacity  uint32 `json:"capacity"`
		Reserved  uint32 `json:"reserved"`
		Remaining uint32 `json:"remaining"`
	}

	ctx := c.Request().Context()
	key := availabilityKey(sessionID)
	if h.Redis != nil {
		if cached, err := h.Redis.Get(ctx, key).Bytes(); err == nil {
			var av availability
			if json.Unmarshal(cached, &av) == nil {
				return c.JSON(http.StatusOK, av)
			}
		}
	}

	capacity, reserved, remaining, err := h.Capacity.Availability(ctx, sessionID)
	if err != nil {
		return httpError(c, err)
	}
	av := availability{SessionID: sessionID, Capacity: capacity, Reserved: reserved, Remaining: remaining}

	if h.Redis != nil {
		if body, err := json.Marshal(av); err == nil {
			h.Redis.Set(ctx, key, body, availabilityTTL)
		}
	}
	return c.JSON(http.StatusOK, av)
}

// UpdateCapacity handles PATCH /v1/sessions/:id.  Organizers may
// grow a session freely; shrinking below the already reserved seats
// is rejected.
func (h *SessionHandler) UpdateCapacity(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	sessionID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	var req struct {
		Capacity uint32 `json:"capacity"`
	}
	if err := c.Bind(&req); err != nil || req.Capacity == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "capacity is required"})
	}

	if err := h.Capacity.SetCapacity(c.Request().Context(), sessionID, uid, req.Capacity); err != nil {
		return httpError(c, err)
	}
	invalidateAvailability(c, h.Redis, sessionID)
	return c.JSON(http.StatusOK, echo.Map{"session_id": sessionID, "capacity": req.Capacity})
}

// Delete handles DELETE /v1/sessions/:id.  Only sessions without
// active reservations can be removed.
func (h *SessionHandler) Delete(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	sessionID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}

	if err := h.Capacity.RemoveSession(c.Request().Context(), sessionID, uid); err != nil {
		return httpError(c, err)
	}
	invalidateAvailability(c, h.Redis, sessionID)
	return c.NoContent(http.StatusNoContent)
}
