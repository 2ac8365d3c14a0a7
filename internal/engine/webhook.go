package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const webhookTimeout = 5 * time.Second

// WebhookSink posts failure events as JSON to an alerting endpoint. Asset
// failures and runs that finished with an error are sent; every other event
// is ignored.
type WebhookSink struct {
	URL    string
	Client *http.Client
	Logger *slog.Logger
}

// NewWebhookSink creates a sink posting to url with a bounded timeout.
func NewWebhookSink(url string, logger *slog.Logger) *WebhookSink {
	return &WebhookSink{
		URL:    url,
		Client: &http.Client{Timeout: webhookTimeout},
		Logger: logger,
	}
}

type webhookPayload struct {
	Event   EventKind `json:"event"`
	RunID   string    `json:"run_id"`
	Job     string    `json:"job"`
	Asset   string    `json:"asset,omitempty"`
	Time    time.Time `json:"time"`
	Message string    `json:"message,omitempty"`
	Error   string    `json:"error"`
}

// Emit implements Sink. Delivery errors are logged and never affect the run.
func (s *WebhookSink) Emit(ctx context.Context, ev Event) {
	if ev.Err == nil || (ev.Kind != EventAssetFailed && ev.Kind != EventRunFinished) {
		return
	}
	if err := s.post(ctx, ev); err != nil {
		s.Logger.Warn("deliver alert", "event", string(ev.Kind), "run_id", ev.RunID, "error", err)
	}
}

func (s *WebhookSink) post(ctx context.Context, ev Event) error {
	body, err := json.Marshal(webhookPayload{
		Event:   ev.Kind,
		RunID:   ev.RunID,
		Job:     ev.Job,
		Asset:   ev.Asset,
		Time:    ev.Time,
		Message: ev.Message,
		Error:   ev.Err.Error(),
	})
	if err != nil {
		return err
	}

	// A cancelled run still reports why it stopped.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), webhookTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("webhook responded %s", resp.Status)
	}
	return nil
}
