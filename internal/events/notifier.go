package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const notifyTimeout = 5 * time.Second

// Notifier forwards ledger events to the DirectAid app backend, which turns
// them into user notifications.
type Notifier struct {
	url        string
	serviceKey string
	client     *http.Client
	log        *zap.Logger
}

func NewNotifier(baseURL, serviceKey string, log *zap.Logger) *Notifier {
	return &Notifier{
		url:        strings.TrimRight(baseURL, "/") + "/internal/ledger-events",
		serviceKey: serviceKey,
		client:     &http.Client{Timeout: notifyTimeout},
		log:        log,
	}
}

// Forwards reports whether the event concerns a user directly. Raw activity
// records stay on the dashboards.
func Forwards(event Event) bool {
	switch event.Type {
	case EventTransactionPosted, EventConfirmation, EventDispute, EventCampaign:
		return true
	}
	return false
}

func (n *Notifier) Notify(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if n.serviceKey != "" {
		req.Header.Set("X-Service-Key", n.serviceKey)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("notify returned %d", resp.StatusCode)
	}
	return nil
}

// Handle is a Subscriber callback. Failures are logged and dropped; the
// ledger stays the source of truth.
func (n *Notifier) Handle(event Event) {
	if !Forwards(event) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	if err := n.Notify(ctx, event); err != nil {
		n.log.Warn("failed to forward notification", zap.String("type", event.Type), zap.Error(err))
		return
	}
	n.log.Debug("notification forwarded", zap.String("type", event.Type))
}
