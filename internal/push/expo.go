// Package push delivers mobile push notifications through the Expo push API.
// Delivery is best-effort: a failed push is logged and never propagated into
// the state transition that triggered it.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Abdullah-z/instaBook-Server/internal/database"
	"github.com/Abdullah-z/instaBook-Server/internal/logger"
	"github.com/Abdullah-z/instaBook-Server/internal/models"
	"go.uber.org/zap"
)

// Notifier sends a notification to a single user. Implemented by ExpoClient;
// the engines depend on this interface so tests can substitute a mock.
type Notifier interface {
	Notify(ctx context.Context, userID, title, body string, data map[string]interface{}) error
}

// ExpoClient sends notifications through Expo's push REST endpoint
type ExpoClient struct {
	pushURL string
	client  *http.Client
}

// NewExpoClient creates a push client. pushURL defaults to the public
// Expo endpoint when empty.
func NewExpoClient(pushURL string) *ExpoClient {
	if pushURL == "" {
		pushURL = "https://exp.host/--/api/v2/push/send"
	}
	return &ExpoClient{
		pushURL: pushURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// expoMessage is the Expo push API request payload
type expoMessage struct {
	To        string                 `json:"to"`
	Sound     string                 `json:"sound"`
	Title     string                 `json:"title"`
	Body      string                 `json:"body"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Priority  string                 `json:"priority"`
	ChannelID string                 `json:"channelId"`
}

// Notify looks up the user's push token and delivers one notification.
// Users without a registered token are skipped silently.
func (c *ExpoClient) Notify(ctx context.Context, userID, title, body string, data map[string]interface{}) error {
	var user models.User
	if err := database.DB.Where("id = ?", userID).First(&user).Error; err != nil {
		return fmt.Errorf("push target %s not found: %w", userID, err)
	}

	if user.PushToken == "" {
		logger.Log.Debug("Skipping push: user has no token", logger.WithUserID(userID))
		return nil
	}

	if !isExpoPushToken(user.PushToken) {
		logger.Log.Warn("Skipping push: invalid Expo push token",
			logger.WithUserID(userID),
			zap.String("token", user.PushToken),
		)
		return nil
	}

	msg := expoMessage{
		To:        user.PushToken,
		Sound:     "default",
		Title:     title,
		Body:      body,
		Data:      data,
		Priority:  "high",
		ChannelID: "default",
	}

	payload, err := json.Marshal([]expoMessage{msg})
	if err != nil {
		return fmt.Errorf("failed to marshal push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.pushURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("push request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("expo push returned %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// isExpoPushToken checks the ExponentPushToken[...] format
func isExpoPushToken(token string) bool {
	return (strings.HasPrefix(token, "ExponentPushToken[") || strings.HasPrefix(token, "ExpoPushToken[")) &&
		strings.HasSuffix(token, "]")
}
