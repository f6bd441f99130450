package http

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/feastly/reminder-gateway/internal/chat"
)

const maxWebhookBody = 1 << 20

// verifyWebhookHandler answers the provider's subscription handshake:
// echo hub.challenge back when the verify token matches.
func verifyWebhookHandler(verifyToken string) echo.HandlerFunc {
	return func(c echo.Context) error {
		mode := c.QueryParam("hub.mode")
		token := c.QueryParam("hub.verify_token")
		challenge := c.QueryParam("hub.challenge")

		if mode != "subscribe" || verifyToken == "" || token != verifyToken {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "verification failed"})
		}
		return c.String(http.StatusOK, challenge)
	}
}

// receiveWebhookHandler validates the payload signature and hands the body to
// the chat processor. Always answers 200 on processable payloads; a non-2xx
// makes the provider redeliver the whole batch.
func receiveWebhookHandler(appSecret string, processor *chat.Processor) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		if appSecret != "" && !validSignature(appSecret, c.Request().Header.Get("X-Hub-Signature-256"), body) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
		}

		processed, err := processor.ProcessPayload(c.Request().Context(), body)
		if err != nil {
			c.Logger().Errorf("webhook payload rejected: %v", err)

			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		}

		return c.JSON(http.StatusOK, map[string]any{"processed": processed})
	}
}

func validSignature(secret, header string, body []byte) bool {
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(sig), []byte(expected))
}
