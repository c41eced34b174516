package alerts

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pinggolf/inventory-chat-core/internal/queue"
	"github.com/rs/zerolog"
)

// Worker consumes queued alert-dispatch messages and performs the actual
// send, mirroring the coordinator-publishes/worker-consumes split of the
// snapshot refresh pipeline: Scheduler.dispatch only publishes, Worker is
// what actually talks to SMTP/the webhook endpoint.
type Worker struct {
	nats       *queue.Manager
	email      EmailConfig
	httpClient *http.Client

	webhookURL    string
	signingSecret string
	log           zerolog.Logger
}

// NewWorker builds a Worker sharing the scheduler's email and webhook
// config, so inline and queued dispatch deliver identically.
func NewWorker(nats *queue.Manager, email EmailConfig, webhookURL, signingSecret string, log zerolog.Logger) *Worker {
	return &Worker{
		nats:          nats,
		email:         email,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		webhookURL:    webhookURL,
		signingSecret: signingSecret,
		log:           log,
	}
}

// Start subscribes to the alert dispatch wildcard subject with a shared
// queue group, so exactly one running worker process handles each queued
// message regardless of how many replicas are up.
func (w *Worker) Start() error {
	_, err := w.nats.QueueSubscribe(queue.SubjectAlertDispatch, queue.QueueGroupAlertDispatch, w.handleDispatch)
	if err != nil {
		return err
	}
	w.log.Info().Str("subject", queue.SubjectAlertDispatch).Msg("alert dispatch worker subscribed")
	return nil
}

func (w *Worker) handleDispatch(msg *nats.Msg) {
	var dm DispatchMessage
	if err := json.Unmarshal(msg.Data, &dm); err != nil {
		w.log.Error().Err(err).Msg("failed to parse alert dispatch message")
		return
	}

	var result ChannelResult
	switch dm.Channel {
	case "email":
		result = sendEmail(w.email, dm.Digest)
	case "webhook":
		result = sendWebhook(context.Background(), w.httpClient, w.webhookURL, w.signingSecret, dm.Digest)
	default:
		w.log.Warn().Str("channel", dm.Channel).Msg("unknown alert dispatch channel")
		return
	}

	if !result.Success {
		w.log.Error().Str("org", dm.Digest.OrgID).Str("channel", dm.Channel).Str("error", result.Error).Msg("queued alert dispatch failed")
		return
	}
	w.log.Info().Str("org", dm.Digest.OrgID).Str("channel", dm.Channel).Msg("queued alert dispatch delivered")
}
