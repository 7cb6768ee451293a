package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/internal/models"
	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/internal/render"
	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/pkg/metrics"
	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/pkg/retry"
)

// CertificateBuilder turns a batch of participant records into delivered
// certificates and one outcome record per participant.
type CertificateBuilder struct {
	assets     AssetResolver
	compositor *render.Compositor
	delivery   *DeliveryCoordinator
	outcomes   OutcomeSender
	sendRetry  retry.Config
	metrics    *metrics.Metrics
	logger     *slog.Logger
	workers    int
}

// NewCertificateBuilder wires the builder. outcomes may be nil, in which case
// Build only returns the records. sendRetry bounds the attempts to send them.
func NewCertificateBuilder(
	assets AssetResolver,
	compositor *render.Compositor,
	delivery *DeliveryCoordinator,
	outcomes OutcomeSender,
	sendRetry retry.Config,
	metrics *metrics.Metrics,
	logger *slog.Logger,
	workers int,
) *CertificateBuilder {
	if workers <= 0 {
		workers = 1
	}
	return &CertificateBuilder{
		assets:     assets,
		compositor: compositor,
		delivery:   delivery,
		outcomes:   outcomes,
		sendRetry:  sendRetry,
		metrics:    metrics,
		logger:     logger,
		workers:    workers,
	}
}

// Build processes every participant of the batch. A failing participant only
// fails its own outcome. Outcomes keep the input order and are sent to the
// notification channel once the whole batch is done. A send that keeps
// failing returns the outcomes with an ErrNotification error; the
// certificates are delivered by then.
func (b *CertificateBuilder) Build(ctx context.Context, batch *models.BatchEnvelope) ([]models.OutcomeRecord, error) {
	if batch == nil || len(batch.Participants) == 0 {
		return nil, fmt.Errorf("%w: batch has no participants", models.ErrBatchInput)
	}

	env := *batch
	if env.BatchID == "" {
		env.BatchID = uuid.NewString()
	}
	batchID := env.BatchID
	log := b.logger.With(slog.String("batch_id", batchID))
	log.Info("processing certificate batch", slog.Int("participants", len(batch.Participants)))

	resolver := NewCachedResolver(b.assets)
	outcomes := make([]models.OutcomeRecord, len(batch.Participants))

	var g errgroup.Group
	g.SetLimit(b.workers)
	for i := range env.Participants {
		g.Go(func() error {
			outcomes[i] = b.buildOne(ctx, log.With(slog.Int("index", i)), resolver, &env, i)
			return nil
		})
	}
	_ = g.Wait()

	b.metrics.IncBatches()
	log.Info("certificate batch processed", slog.Int("failed", countFailed(outcomes)))

	if err := b.send(ctx, log, batchID, outcomes); err != nil {
		return outcomes, err
	}
	return outcomes, nil
}

func (b *CertificateBuilder) send(ctx context.Context, log *slog.Logger, batchID string, outcomes []models.OutcomeRecord) error {
	if b.outcomes == nil {
		return nil
	}
	cfg := b.sendRetry
	cfg.OnRetry = func(attempt int, err error) {
		log.Warn("outcome send failed, retrying", slog.Int("attempt", attempt), slog.Any("error", err))
	}
	err := retry.Do(ctx, cfg, func(int) error {
		return b.outcomes.Send(ctx, batchID, outcomes)
	})
	if err != nil {
		return fmt.Errorf("%w: send outcomes: %w", models.ErrNotification, err)
	}
	return nil
}

func (b *CertificateBuilder) buildOne(ctx context.Context, log *slog.Logger, resolver AssetResolver, batch *models.BatchEnvelope, i int) models.OutcomeRecord {
	p, err := batch.ParticipantAt(i)
	if err != nil {
		out := partialOutcome(batch.Participants[i])
		return b.failed(log, out, err)
	}

	out := models.NewOutcome(p)
	if err := p.Validate(); err != nil {
		return b.failed(log, out, err)
	}
	key, err := p.CertificateFilename()
	if err != nil {
		return b.failed(log, out, err)
	}
	out.CertificateKey = key
	log = log.With(slog.String("certificate_key", key))

	png, err := b.compose(ctx, log, resolver, p)
	if err != nil {
		return b.failed(log, out, err)
	}

	res, err := b.delivery.Deliver(ctx, RenderedCertificate{Key: key, Participant: p, PNG: png})
	if err != nil {
		// The coordinator already counted and logged the failure.
		out.Fail(err)
		return out
	}
	out.Success = true
	out.Skipped = res.Skipped
	return out
}

func (b *CertificateBuilder) compose(ctx context.Context, log *slog.Logger, resolver AssetResolver, p *models.Participant) ([]byte, error) {
	cert := p.Certificate
	background, err := resolver.Fetch(ctx, cert.Background)
	if err != nil {
		return nil, err
	}
	assets := render.Assets{Background: background}
	if cert.Logo != "" {
		if assets.Logo, err = resolver.Fetch(ctx, cert.Logo); err != nil {
			return nil, err
		}
	}

	started := time.Now()
	res, err := b.compositor.Render(assets, render.Content{
		Name:    p.CompleteName(),
		Details: RenderDetails(cert.Details, detailVariables(p)),
		Code:    p.FormattedValidationCode(),
	})
	if err != nil {
		return nil, err
	}
	b.metrics.ObserveRender(time.Since(started).Seconds())
	for _, el := range res.Fallbacks {
		b.metrics.IncFallback(el)
	}
	if len(res.Fallbacks) > 0 {
		log.Warn("certificate rendered with opaque fallback", slog.Any("elements", res.Fallbacks))
	}

	return render.EncodePNG(res.Image)
}

func (b *CertificateBuilder) failed(log *slog.Logger, out models.OutcomeRecord, err error) models.OutcomeRecord {
	b.metrics.IncFailed()
	log.Error("certificate failed", slog.String("email", out.Email), slog.Any("error", err))
	out.Fail(err)
	return out
}

// partialOutcome recovers whatever identifies a record that did not parse.
func partialOutcome(raw json.RawMessage) models.OutcomeRecord {
	var rec struct {
		Email       string `json:"email"`
		ProductName string `json:"product_name"`
	}
	_ = json.Unmarshal(raw, &rec)
	return models.OutcomeRecord{Email: rec.Email, ProductName: rec.ProductName}
}

func countFailed(outcomes []models.OutcomeRecord) int {
	n := 0
	for _, o := range outcomes {
		if !o.Success {
			n++
		}
	}
	return n
}
