package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"daybook/internal/config"
	"daybook/internal/domain"
	"daybook/internal/events"
)

const (
	defaultWebhookInterval = 2 * time.Second
	defaultWebhookTimeout  = 5 * time.Second
	defaultWebhookBatch    = 100
)

// WebhookDispatcher forwards new event log entries to the configured hooks.
// Each hook keeps its own cursor and starts at the newest event seen when the
// dispatcher was created; a failed delivery is retried on the next tick.
type WebhookDispatcher struct {
	Events   events.Writer
	Hooks    []config.WebhookConfig
	Interval time.Duration
	Client   *http.Client
	Logger   *log.Logger

	cursors map[int]int64
}

func NewWebhookDispatcher(w events.Writer, hooks []config.WebhookConfig, logger *log.Logger) *WebhookDispatcher {
	if logger == nil {
		logger = log.Default()
	}
	return &WebhookDispatcher{
		Events:   w,
		Hooks:    hooks,
		Interval: defaultWebhookInterval,
		Client:   &http.Client{Timeout: defaultWebhookTimeout},
		Logger:   logger,
		cursors:  map[int]int64{},
	}
}

// Run dispatches until ctx is done. It returns at once when no hook is
// enabled.
func (d *WebhookDispatcher) Run(ctx context.Context) {
	if !d.active() {
		return
	}
	ticker := time.NewTicker(d.Interval)
	defer ticker.Stop()
	for {
		d.Dispatch(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (d *WebhookDispatcher) active() bool {
	for _, hook := range d.Hooks {
		if enabled(hook) {
			return true
		}
	}
	return false
}

func enabled(hook config.WebhookConfig) bool {
	if hook.Enabled != nil && !*hook.Enabled {
		return false
	}
	return strings.TrimSpace(hook.URL) != ""
}

// Dispatch runs one delivery pass over every enabled hook.
func (d *WebhookDispatcher) Dispatch(ctx context.Context) {
	for i, hook := range d.Hooks {
		if !enabled(hook) {
			continue
		}
		d.dispatchWebhook(ctx, i, hook)
	}
}

func (d *WebhookDispatcher) dispatchWebhook(ctx context.Context, idx int, hook config.WebhookConfig) {
	cursor, ok := d.cursors[idx]
	if !ok {
		latest, err := d.Events.LatestID(ctx)
		if err != nil {
			d.Logger.Printf("webhook: init cursor failed: %v", err)
			return
		}
		d.cursors[idx] = latest
		return
	}
	batch, err := d.Events.After(ctx, defaultWebhookBatch, cursor)
	if err != nil {
		d.Logger.Printf("webhook: fetch events failed: %v", err)
		return
	}
	filter := newEventFilter(hook.Events)
	for _, evt := range batch {
		if filter.match(evt.Type) {
			if err := d.postEvent(ctx, hook, evt); err != nil {
				d.Logger.Printf("webhook: deliver to %s failed: %v", hook.URL, err)
				return
			}
		}
		d.cursors[idx] = evt.ID
	}
}

type webhookEvent struct {
	ID         int64           `json:"id"`
	Type       string          `json:"type"`
	EntityKind string          `json:"entity_kind"`
	EntityID   string          `json:"entity_id,omitempty"`
	TS         string          `json:"ts"`
	Payload    json.RawMessage `json:"payload"`
}

func (d *WebhookDispatcher) postEvent(ctx context.Context, hook config.WebhookConfig, evt domain.Event) error {
	payload := json.RawMessage(`{}`)
	if evt.Payload != "" && json.Valid([]byte(evt.Payload)) {
		payload = json.RawMessage(evt.Payload)
	}
	data, err := json.Marshal(webhookEvent{
		ID:         evt.ID,
		Type:       evt.Type,
		EntityKind: evt.EntityKind,
		EntityID:   evt.EntityID,
		TS:         evt.TS,
		Payload:    payload,
	})
	if err != nil {
		return err
	}
	client := d.Client
	if hook.TimeoutSeconds > 0 {
		client = &http.Client{Timeout: time.Duration(hook.TimeoutSeconds) * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Daybook-Event", evt.Type)
	req.Header.Set("X-Daybook-Delivery", fmt.Sprintf("%d", evt.ID))
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-Daybook-Secret", hook.Secret)
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

type eventFilter struct {
	all bool
	set map[string]struct{}
}

func newEventFilter(types []string) eventFilter {
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		if key := strings.TrimSpace(t); key != "" {
			set[key] = struct{}{}
		}
	}
	return eventFilter{all: len(set) == 0, set: set}
}

func (f eventFilter) match(evtType string) bool {
	if f.all {
		return true
	}
	_, ok := f.set[evtType]
	return ok
}
