package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mc-gateway/gateway/filter"
)

// ConnectionNotifier is an optional collaborator the connection handler
// (connector.go) calls out to on connect/disconnect/missing-backend/failed-backend, a
// feature the distilled spec's component list omits but the teacher
// implements (server/webhook_notifier.go). A nil ConnectionNotifier is
// never called; Server treats it as fully optional.
type ConnectionNotifier interface {
	NotifyMissingBackend(ctx context.Context, clientAddr net.Addr, configID string, player *filter.PlayerInfo)
	NotifyFailedBackend(ctx context.Context, clientAddr net.Addr, configID string, player *filter.PlayerInfo, backend string, err error)
	NotifyConnected(ctx context.Context, clientAddr net.Addr, configID string, player *filter.PlayerInfo, backend string)
	NotifyDisconnected(ctx context.Context, clientAddr net.Addr, configID string, player *filter.PlayerInfo, backend string)
}

const (
	webhookEventConnecting    = "connect"
	webhookEventDisconnecting = "disconnect"

	webhookStatusMissingBackend = "missing-backend"
	webhookStatusFailedBackend  = "failed-backend-connection"
	webhookStatusSuccess        = "success"
)

// webhookPayload is the JSON body posted to a WebhookNotifier's URL,
// matching the teacher's WebhookNotifierPayload shape.
type webhookPayload struct {
	Event      string             `json:"event"`
	Timestamp  time.Time          `json:"timestamp"`
	Status     string             `json:"status"`
	ClientAddr string             `json:"client_addr"`
	ConfigID   string             `json:"config_id"`
	Player     *filter.PlayerInfo `json:"player,omitempty"`
	Backend    string             `json:"backend,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// WebhookNotifier implements ConnectionNotifier by POSTing a JSON payload
// to a configured URL, firing the request from a background goroutine so
// a slow or unreachable receiver never blocks the connection it is
// reporting on.
type WebhookNotifier struct {
	url         string
	requireUser bool
	client      *http.Client
}

// NewWebhookNotifier builds a WebhookNotifier posting to url. When
// requireUser is set, notifications for connections that never produced a
// known player (e.g. a bare status ping) are suppressed.
func NewWebhookNotifier(url string, requireUser bool) *WebhookNotifier {
	return &WebhookNotifier{
		url:         url,
		requireUser: requireUser,
		client:      &http.Client{Timeout: 30 * time.Second},
	}
}

func (w *WebhookNotifier) NotifyMissingBackend(ctx context.Context, clientAddr net.Addr, configID string, player *filter.PlayerInfo) {
	w.send(ctx, webhookPayload{
		Event:      webhookEventConnecting,
		Timestamp:  time.Now(),
		Status:     webhookStatusMissingBackend,
		ClientAddr: clientAddr.String(),
		ConfigID:   configID,
		Player:     player,
		Error:      "no route matched",
	})
}

func (w *WebhookNotifier) NotifyFailedBackend(ctx context.Context, clientAddr net.Addr, configID string, player *filter.PlayerInfo, backend string, err error) {
	w.send(ctx, webhookPayload{
		Event:      webhookEventConnecting,
		Timestamp:  time.Now(),
		Status:     webhookStatusFailedBackend,
		ClientAddr: clientAddr.String(),
		ConfigID:   configID,
		Player:     player,
		Backend:    backend,
		Error:      err.Error(),
	})
}

func (w *WebhookNotifier) NotifyConnected(ctx context.Context, clientAddr net.Addr, configID string, player *filter.PlayerInfo, backend string) {
	w.send(ctx, webhookPayload{
		Event:      webhookEventConnecting,
		Timestamp:  time.Now(),
		Status:     webhookStatusSuccess,
		ClientAddr: clientAddr.String(),
		ConfigID:   configID,
		Player:     player,
		Backend:    backend,
	})
}

func (w *WebhookNotifier) NotifyDisconnected(ctx context.Context, clientAddr net.Addr, configID string, player *filter.PlayerInfo, backend string) {
	w.send(ctx, webhookPayload{
		Event:      webhookEventDisconnecting,
		Timestamp:  time.Now(),
		Status:     webhookStatusSuccess,
		ClientAddr: clientAddr.String(),
		ConfigID:   configID,
		Player:     player,
		Backend:    backend,
	})
}

func (w *WebhookNotifier) send(ctx context.Context, payload webhookPayload) {
	if w.requireUser && payload.Player == nil {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		logrus.WithError(err).Error("webhook: marshal payload")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		logrus.WithError(err).Error("webhook: build request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	go func() {
		resp, err := w.client.Do(req)
		if err != nil {
			logrus.WithError(err).Warn("webhook: delivery failed")
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			logrus.WithField("status", resp.StatusCode).Warn("webhook: receiver responded with an error")
		}
	}()
}
