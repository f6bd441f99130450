package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/feastly/reminder-gateway/internal/reminder"
)

func runTriggerHandler(executor *reminder.Executor) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || id <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid trigger id"})
		}

		exec, err := executor.Run(c.Request().Context(), id)
		switch {
		case errors.Is(err, reminder.ErrTriggerNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{"error": "trigger not found"})
		case errors.Is(err, reminder.ErrTriggerInactive), errors.Is(err, reminder.ErrCampaignInactive):
			return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
		case errors.Is(err, reminder.ErrRunInProgress):
			return c.JSON(http.StatusConflict, map[string]string{"error": "run already in progress"})
		case err != nil:
			log.Errorf("trigger run failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "run failed"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"execution_id":     exec.ID,
			"trigger_id":       exec.TriggerID,
			"status":           exec.Status.String(),
			"total_recipients": exec.TotalRecipients,
			"sent":             exec.SentCount,
			"failed":           exec.FailedCount,
		})
	}
}

func sweepPendingHandler(store *reminder.PendingStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		stats, err := store.Sweep(c.Request().Context())
		if err != nil {
			log.Errorf("pending sweep failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "sweep failed"})
		}
		return c.JSON(http.StatusOK, map[string]any{
			"sent":      stats.Sent,
			"expired":   stats.Expired,
			"unchanged": stats.Unchanged,
		})
	}
}
