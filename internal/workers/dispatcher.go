package workers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/relaypay/switchcore/internal/config"
	"github.com/relaypay/switchcore/internal/model"
	"github.com/relaypay/switchcore/internal/signing"
	"github.com/relaypay/switchcore/internal/store"
	"github.com/relaypay/switchcore/log"
)

// SecretProvider resolves the HMAC secret an institution's webhooks are
// signed with.
type SecretProvider interface {
	WebhookSecret(institutionID uuid.UUID) ([]byte, error)
}

// StaticSecretProvider serves a single fixed secret for every
// institution. Suitable for single-tenant deployments and tests; a
// multi-tenant deployment supplies its own [SecretProvider] backed by
// whatever store holds per-institution credentials.
type StaticSecretProvider struct {
	secret []byte
}

// NewStaticSecretProvider builds a StaticSecretProvider.
func NewStaticSecretProvider(secret []byte) *StaticSecretProvider {
	return &StaticSecretProvider{secret: secret}
}

// WebhookSecret always returns the configured static secret.
func (p *StaticSecretProvider) WebhookSecret(uuid.UUID) ([]byte, error) {
	return p.secret, nil
}

// Dispatcher implements the Client Callback Dispatcher:
// claim due webhook deliveries, sign and POST each, and reschedule with
// exponential backoff on failure.
type Dispatcher struct {
	store   store.Store
	secrets SecretProvider
	cfg     *config.Config
	client  *http.Client
}

// NewDispatcher builds a Dispatcher.
func NewDispatcher(st store.Store, secrets SecretProvider, cfg *config.Config) *Dispatcher {
	return &Dispatcher{
		store:   st,
		secrets: secrets,
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Backoff.RequestTimeout},
	}
}

// Run starts the polling loop; it returns when ctx is canceled.
func (d *Dispatcher) Run(ctx context.Context) {
	Run(ctx, "dispatcher", d.cfg.PollIntervals.Dispatcher, d.Tick)
}

// Tick claims due client callbacks and attempts delivery of each.
func (d *Dispatcher) Tick(ctx context.Context) error {
	due, err := d.store.ClaimDueClientCallbacks(ctx, time.Now(), d.cfg.BatchSize)
	if err != nil {
		return err
	}
	for _, cc := range due {
		if err := d.deliverOne(ctx, cc); err != nil {
			log.LoggerFromValues(ctx).Error("webhook delivery failed", "clientCallbackId", cc.ID, "error", err)
		}
	}
	return nil
}

func (d *Dispatcher) deliverOne(ctx context.Context, cc *model.ClientCallback) error {
	t, err := d.store.GetTransactionByID(ctx, cc.TransactionID)
	if err != nil {
		return err
	}

	secret, err := d.secrets.WebhookSecret(t.InstitutionID)
	if err != nil {
		return err
	}

	timestampMs := time.Now().UnixMilli()
	sig := signing.Sign(secret, timestampMs, cc.Payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cc.URL, bytes.NewReader(cc.Payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", sig)
	req.Header.Set("X-Webhook-Timestamp", fmt.Sprintf("%d", timestampMs))
	req.Header.Set("X-Transaction-Reference", t.ReferenceNumber)
	req.Header.Set("User-Agent", "FundManagement-Webhook/1.0")

	resp, sendErr := d.client.Do(req)

	cc.Attempts++
	if sendErr != nil {
		cc.LastError = sendErr.Error()
		return d.scheduleRetryOrFail(ctx, cc)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	cc.LastResponseCode = resp.StatusCode
	cc.LastResponseBody = string(body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		cc.Status = model.ClientCallbackDelivered
		if err := d.store.UpdateClientCallback(ctx, cc); err != nil {
			return err
		}
		return d.store.MarkClientCallbackSent(ctx, t.ID, time.Now())
	}

	return d.scheduleRetryOrFail(ctx, cc)
}

func (d *Dispatcher) scheduleRetryOrFail(ctx context.Context, cc *model.ClientCallback) error {
	if cc.Attempts >= cc.MaxAttempts {
		cc.Status = model.ClientCallbackFailed
		return d.store.UpdateClientCallback(ctx, cc)
	}
	cc.Status = model.ClientCallbackPending
	cc.NextAttemptAt = time.Now().Add(nextDelay(d.cfg.Backoff, cc.Attempts))
	return d.store.UpdateClientCallback(ctx, cc)
}
