package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/feastly/reminder-gateway/internal/model"
	"github.com/feastly/reminder-gateway/internal/repository"
	"github.com/feastly/reminder-gateway/internal/util"
)

func listMessagesHandler(chRepo repository.CHMessagesRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit := 50
		offset := 0
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
				limit = n
			}
		}
		if v := c.QueryParam("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				offset = n
			}
		}

		var filter repository.MessageReportFilter
		if raw := strings.TrimSpace(c.QueryParam("status")); raw != "" {
			if st := model.MessageStatus(raw); st.Valid() {
				filter.Status = st
			}
		}
		switch c.QueryParam("direction") {
		case "inbound":
			filter.Direction = model.DirectionInbound
		case "outbound":
			filter.Direction = model.DirectionOutbound
		}
		if raw := strings.TrimSpace(c.QueryParam("phone")); raw != "" {
			filter.Phone = util.NormalizePhone(raw)
		}

		msgs, err := chRepo.List(c.Request().Context(), filter, limit, offset)
		if err != nil {
			c.Logger().Errorf("clickhouse list failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"limit":   limit,
			"offset":  offset,
			"count":   len(msgs),
			"results": msgs,
		})
	}
}
