// Package notify contains the outbound push notification dispatcher
// Notifications are a best-effort side effect: callers log failures and move on, a failed push never
// fails the operation that triggered it
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

// Message is the content of one push notification
type Message struct {
	// Short headline shown in the notification tray
	Title string `json:"title"`
	// The notification text
	Body string `json:"body"`
	// Additional payload handed to the receiving app
	Data map[string]string `json:"data,omitempty"`
}

// Notifier sends push notifications to a singer's device
type Notifier interface {
	// Notify sends the given message to the device identified by the push token
	Notify(ctx context.Context, pushToken string, msg Message) error
}

// -- Expo implementation ----------------------------------------------------------------------------------------------

// expoRequest is the payload format of the Expo push endpoint
type expoRequest struct {
	To string `json:"to"`
	Message
}

// ExpoNotifier sends push notifications via the Expo push service
type ExpoNotifier struct {
	url    string
	client *http.Client
	logger *logrus.Entry
}

// NewExpo creates a new ExpoNotifier posting to the given push endpoint URL
func NewExpo(url string, logger *logrus.Entry) *ExpoNotifier {
	return &ExpoNotifier{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Notify sends the given message to the device identified by the push token
func (n *ExpoNotifier) Notify(ctx context.Context, pushToken string, msg Message) error {
	if pushToken == "" {
		// Nothing to deliver to - not an error, the user simply has no registered device
		return nil
	}
	payload, err := json.Marshal(expoRequest{To: pushToken, Message: msg})
	if err != nil {
		return fmt.Errorf("Notify: Failed to serialize push payload: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("Notify: Failed to build push request: %v", err)
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("Notify: Push request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("Notify: Push endpoint answered with status %d", resp.StatusCode)
	}
	n.logger.WithField("title", msg.Title).Debug("Push notification sent")
	return nil
}

// -- Nop implementation -----------------------------------------------------------------------------------------------

// Nop is a Notifier that silently discards every message. It is used when push notifications are
// disabled in the configuration
type Nop struct{}

// Notify discards the message
func (Nop) Notify(ctx context.Context, pushToken string, msg Message) error {
	return nil
}
