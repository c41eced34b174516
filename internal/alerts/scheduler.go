// Package alerts implements the daily stockout-alert scheduler:
// per-tenant idempotent digest generation and multi-channel dispatch
// (component C8).
package alerts

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"github.com/pinggolf/inventory-chat-core/internal/clock"
	"github.com/pinggolf/inventory-chat-core/internal/db"
	"github.com/pinggolf/inventory-chat-core/internal/idemstore"
	"github.com/pinggolf/inventory-chat-core/internal/queue"
	"github.com/pinggolf/inventory-chat-core/internal/reorder"
	"github.com/pinggolf/inventory-chat-core/internal/risk"
	"github.com/rs/zerolog"
)

// IdempotencyTTL is the minimum retention for a daily alert idempotency
// key, per the spec's "TTL >= 48 hours" requirement.
const IdempotencyTTL = 48 * time.Hour

// Digest is one org's computed stockout-risk summary for a day.
type Digest struct {
	OrgID          string
	HighCount      int
	MediumCount    int
	Assessments    []risk.Assessment
}

// ChannelResult records the outcome of dispatching one digest to one
// channel.
type ChannelResult struct {
	Channel string `json:"channel"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// OrgSummary is one org's entry in the scheduler's run summary.
type OrgSummary struct {
	OrgID          string          `json:"org_id"`
	AlreadyRan     bool            `json:"already_ran"`
	HighCount      int             `json:"high_count"`
	MediumCount    int             `json:"medium_count"`
	ChannelResults []ChannelResult `json:"channel_results,omitempty"`
}

// Summary is the scheduler's overall run result.
type Summary struct {
	Orgs             []OrgSummary `json:"orgs"`
	AlertsSentTotal  int          `json:"alerts_sent_total"`
}

// EmailConfig carries the SMTP dispatch settings.
type EmailConfig struct {
	Host, Port, User, Pass, From, To string
}

// Scheduler runs the daily alert pipeline.
type Scheduler struct {
	queries        *db.Queries
	store          idemstore.Store
	clock          clock.Clock
	log            zerolog.Logger
	webhookURL     string
	signingSecret  string
	email          EmailConfig
	httpClient     *http.Client
	queueManager   *queue.Manager
}

// NewScheduler builds a Scheduler. queueManager may be nil, in which case
// Run dispatches to each channel inline rather than fanning the work out
// over NATS (useful for tests and single-process deployments).
func NewScheduler(queries *db.Queries, store idemstore.Store, c clock.Clock, log zerolog.Logger, webhookURL, signingSecret string, email EmailConfig, queueManager *queue.Manager) *Scheduler {
	return &Scheduler{
		queries:       queries,
		store:         store,
		clock:         c,
		log:           log,
		webhookURL:    webhookURL,
		signingSecret: signingSecret,
		email:         email,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		queueManager:  queueManager,
	}
}

func idempotencyKey(orgID string, day time.Time) string {
	return fmt.Sprintf("alerts:daily:%s:%s", orgID, day.Format("20060102"))
}

// Run executes the full scheduler algorithm (C8 steps 1-6): enumerate
// orgs, check/mark idempotency, generate a digest via the risk engine,
// fan out to channels, and accumulate a summary. The strategy argument is
// not used: the digest takes each product's first positive of v7d and v30d
// (firstPositiveVelocity) regardless of it.
func (s *Scheduler) Run(ctx context.Context, strategy reorder.Strategy, channels []string) (Summary, error) {
	orgs, err := s.queries.ListOrganizations(ctx)
	if err != nil {
		return Summary{}, err
	}

	now := s.clock.Now()
	summary := Summary{}

	for _, org := range orgs {
		key := idempotencyKey(org.ID, now)
		marked, err := s.store.MarkIfAbsent(ctx, key, IdempotencyTTL)
		if err != nil {
			s.log.Error().Err(err).Str("org", org.ID).Msg("idempotency check failed")
			continue
		}
		if !marked {
			summary.Orgs = append(summary.Orgs, OrgSummary{OrgID: org.ID, AlreadyRan: true})
			continue
		}

		digest, err := s.buildDigest(ctx, org.ID)
		if err != nil {
			s.log.Error().Err(err).Str("org", org.ID).Msg("digest generation failed")
			continue
		}

		results := s.dispatch(ctx, digest, channels)
		for _, r := range results {
			if r.Success {
				summary.AlertsSentTotal++
			}
		}

		summary.Orgs = append(summary.Orgs, OrgSummary{
			OrgID: org.ID, HighCount: digest.HighCount, MediumCount: digest.MediumCount, ChannelResults: results,
		})
	}

	return summary, nil
}

func (s *Scheduler) buildDigest(ctx context.Context, orgID string) (Digest, error) {
	inputs, err := s.queries.ReorderInputs(ctx, orgID)
	if err != nil {
		return Digest{}, err
	}

	var assessments []risk.Assessment
	for _, row := range inputs {
		v := firstPositiveVelocity(row)
		assessments = append(assessments, risk.Assess(row.ProductID, row.SKU, row.OnHand, v, row.ReorderPoint))
	}
	risk.Sort(assessments)

	digest := Digest{OrgID: orgID, Assessments: assessments}
	for _, a := range assessments {
		switch a.Band {
		case risk.BandHigh:
			digest.HighCount++
		case risk.BandMedium:
			digest.MediumCount++
		}
	}
	return digest, nil
}

func firstPositiveVelocity(row db.ReorderInputsRow) float64 {
	if row.V7d.Valid {
		if v, _ := row.V7d.Decimal.Float64(); v > 0 {
			return v
		}
	}
	if row.V30d.Valid {
		if v, _ := row.V30d.Decimal.Float64(); v > 0 {
			return v
		}
	}
	return 0
}

// DispatchMessage is the payload published to NATS for one org+channel
// fan-out leg, consumed by Worker.
type DispatchMessage struct {
	Channel string `json:"channel"`
	Digest  Digest `json:"digest"`
}

// dispatch fans delivery work out, either over NATS (when a queue manager
// is configured, matching the teacher's worker-consumes-a-subject shape)
// or inline. Inline results are known synchronously; queued results
// report Success optimistically since the worker, not the scheduler,
// owns the actual send outcome.
func (s *Scheduler) dispatch(ctx context.Context, digest Digest, channels []string) []ChannelResult {
	var out []ChannelResult
	for _, raw := range channels {
		ch := strings.ToLower(strings.TrimSpace(raw))
		if ch != "email" && ch != "webhook" {
			out = append(out, ChannelResult{Channel: raw, Success: false, Error: "unknown channel"})
			continue
		}

		if s.queueManager != nil {
			out = append(out, s.publishDispatch(digest, ch))
			continue
		}

		switch ch {
		case "email":
			out = append(out, sendEmail(s.email, digest))
		case "webhook":
			out = append(out, sendWebhook(ctx, s.httpClient, s.webhookURL, s.signingSecret, digest))
		}
	}
	return out
}

func (s *Scheduler) publishDispatch(digest Digest, channel string) ChannelResult {
	payload, err := json.Marshal(DispatchMessage{Channel: channel, Digest: digest})
	if err != nil {
		return ChannelResult{Channel: channel, Success: false, Error: err.Error()}
	}
	subject := queue.AlertDispatchSubject(digest.OrgID, channel)
	if err := s.queueManager.Publish(subject, payload); err != nil {
		s.log.Error().Err(err).Str("subject", subject).Msg("failed to publish alert dispatch")
		return ChannelResult{Channel: channel, Success: false, Error: err.Error()}
	}
	return ChannelResult{Channel: channel, Success: true}
}

// sendEmail delivers one digest over SMTP. It is a package-level function so
// both the inline dispatch path and Worker (consuming from NATS) share it.
func sendEmail(email EmailConfig, digest Digest) ChannelResult {
	if email.Host == "" {
		return ChannelResult{Channel: "email", Success: false, Error: "SMTP not configured"}
	}

	body := fmt.Sprintf("Stockout digest for %s: %d high risk, %d medium risk",
		digest.OrgID, digest.HighCount, digest.MediumCount)
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: Daily stockout digest\r\n\r\n%s", email.From, email.To, body)

	var auth smtp.Auth
	if email.User != "" {
		auth = smtp.PlainAuth("", email.User, email.Pass, email.Host)
	}

	addr := fmt.Sprintf("%s:%s", email.Host, email.Port)
	if err := smtp.SendMail(addr, auth, email.From, []string{email.To}, []byte(msg)); err != nil {
		return ChannelResult{Channel: "email", Success: false, Error: err.Error()}
	}
	return ChannelResult{Channel: "email", Success: true}
}

// sendWebhook delivers one digest over HTTP POST, HMAC-signed when
// signingSecret is set.
func sendWebhook(ctx context.Context, httpClient *http.Client, webhookURL, signingSecret string, digest Digest) ChannelResult {
	if webhookURL == "" {
		return ChannelResult{Channel: "webhook", Success: false, Error: "webhook URL not configured"}
	}

	payload, err := json.Marshal(digest)
	if err != nil {
		return ChannelResult{Channel: "webhook", Success: false, Error: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, strings.NewReader(string(payload)))
	if err != nil {
		return ChannelResult{Channel: "webhook", Success: false, Error: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	if signingSecret != "" {
		req.Header.Set("X-Signature", sign(signingSecret, payload))
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return ChannelResult{Channel: "webhook", Success: false, Error: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ChannelResult{Channel: "webhook", Success: false, Error: fmt.Sprintf("status %d", resp.StatusCode)}
	}
	return ChannelResult{Channel: "webhook", Success: true}
}

// sign computes the HMAC-SHA256 signature of payload, hex-encoded, for
// the optional X-Signature webhook header.
func sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
