// Package webhook delivers signed execution events to a configured endpoint.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/use-agent/actorkit/models"
)

// Event types.
const (
	EventExecutionCompleted = "execution.completed"
	EventExecutionFailed    = "execution.failed"
)

// SignatureHeader carries "sha256=<hex>" when a secret is configured.
const SignatureHeader = "X-Actorkit-Signature"

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type        string                 `json:"type"`
	ExecutionID string                 `json:"execution_id"`
	Timestamp   int64                  `json:"timestamp"`
	Data        *models.ActorExecution `json:"data"`
}

// Notifier posts events to one URL.
type Notifier struct {
	url    string
	secret string
	client *http.Client
	delays []time.Duration
}

// New creates a Notifier. It returns nil when url is empty, and a nil
// Notifier ignores every event.
func New(url, secret string) *Notifier {
	if url == "" {
		return nil
	}
	return &Notifier{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
		delays: []time.Duration{0, 1 * time.Second, 5 * time.Second, 30 * time.Second},
	}
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Deliver sends event synchronously.
func (n *Notifier) Deliver(ctx context.Context, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Actorkit-Webhook/1.0")
	if n.secret != "" {
		req.Header.Set(SignatureHeader, "sha256="+Sign(n.secret, body))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// ExecutionFinished is an execution.Listener: it sends the terminal record
// in the background, retrying on failure.
func (n *Notifier) ExecutionFinished(e *models.ActorExecution) {
	if n == nil {
		return
	}
	typ := EventExecutionCompleted
	if e.Status == models.StatusFailed {
		typ = EventExecutionFailed
	}
	go n.deliverWithRetry(&Event{
		Type:        typ,
		ExecutionID: e.ID,
		Timestamp:   time.Now().Unix(),
		Data:        e,
	})
}

func (n *Notifier) deliverWithRetry(event *Event) {
	for attempt, delay := range n.delays {
		if delay > 0 {
			time.Sleep(delay)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := n.Deliver(ctx, event)
		cancel()
		if err == nil {
			slog.Info("webhook delivered",
				"event", event.Type,
				"execution_id", event.ExecutionID,
				"attempt", attempt+1,
			)
			return
		}
		slog.Warn("webhook delivery failed",
			"event", event.Type,
			"execution_id", event.ExecutionID,
			"attempt", attempt+1,
			"error", err,
		)
	}
	slog.Error("webhook delivery exhausted all retries",
		"event", event.Type,
		"execution_id", event.ExecutionID,
	)
}
