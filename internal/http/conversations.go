package http

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/feastly/reminder-gateway/internal/util"
	"github.com/feastly/reminder-gateway/internal/window"
)

// conversationWindowHandler is the preview endpoint: it reports whether a
// free-text message can be sent to the phone number right now, without
// touching any state.
func conversationWindowHandler(tracker *window.Tracker) echo.HandlerFunc {
	return func(c echo.Context) error {
		phone := util.NormalizePhone(strings.TrimSpace(c.Param("phone")))
		if phone == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid phone"})
		}

		conv, err := tracker.Peek(c.Request().Context(), phone)
		if err != nil {
			log.Errorf("window lookup failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
		}
		if conv == nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "no conversation"})
		}

		resp := map[string]any{
			"conversation_id": conv.ID,
			"phone_number":    conv.PhoneNumber,
			"status":          conv.Status,
			"window_status":   tracker.Status(conv),
		}
		if exp := tracker.ExpiresAt(conv); exp != nil {
			resp["window_expires_at"] = exp
		}
		return c.JSON(http.StatusOK, resp)
	}
}

// closeConversationHandler terminally closes the open conversation for a
// phone number. The next contact starts a fresh row.
func closeConversationHandler(tracker *window.Tracker) echo.HandlerFunc {
	return func(c echo.Context) error {
		phone := util.NormalizePhone(strings.TrimSpace(c.Param("phone")))
		if phone == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid phone"})
		}

		conv, err := tracker.Peek(c.Request().Context(), phone)
		if err != nil {
			log.Errorf("conversation lookup failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
		}
		if conv == nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "no conversation"})
		}

		if err := tracker.Close(c.Request().Context(), conv.ID); err != nil {
			log.Errorf("close conversation %d failed: %v", conv.ID, err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "close failed"})
		}
		return c.JSON(http.StatusOK, map[string]any{
			"conversation_id": conv.ID,
			"status":          "closed",
		})
	}
}
