package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/internal/models"
	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/pkg/metrics"
	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/pkg/retry"
)

// RenderedCertificate is a composed certificate ready for delivery.
type RenderedCertificate struct {
	Key         string
	Participant *models.Participant
	PNG         []byte
}

// DeliveryResult is the final state of one delivery.
type DeliveryResult struct {
	State    models.DeliveryState
	Skipped  bool
	Attempts int
}

// DeliveryCoordinator uploads each certificate at most once. The dedup store
// gates every delivery; transient failures are retried up to the configured
// attempt bound.
type DeliveryCoordinator struct {
	blobs      BlobStore
	acceptance AcceptanceSender
	dedup      DedupStore
	status     *StatusUpdater
	metrics    *metrics.Metrics
	logger     *slog.Logger
	retryCfg   retry.Config
	claimTTL   time.Duration
}

// NewDeliveryCoordinator wires the coordinator. acceptance may be nil when
// no acceptance endpoint is configured.
func NewDeliveryCoordinator(
	blobs BlobStore,
	acceptance AcceptanceSender,
	dedup DedupStore,
	status *StatusUpdater,
	metrics *metrics.Metrics,
	logger *slog.Logger,
	retryCfg retry.Config,
	claimTTL time.Duration,
) *DeliveryCoordinator {
	if retryCfg.MaxAttempts <= 0 {
		retryCfg.MaxAttempts = 3
	}
	return &DeliveryCoordinator{
		blobs:      blobs,
		acceptance: acceptance,
		dedup:      dedup,
		status:     status,
		metrics:    metrics,
		logger:     logger,
		retryCfg:   retryCfg,
		claimTTL:   claimTTL,
	}
}

func (d *DeliveryCoordinator) Deliver(ctx context.Context, cert RenderedCertificate) (DeliveryResult, error) {
	log := d.logger.With(slog.String("certificate_key", cert.Key))
	email := cert.Participant.Email

	delivered, err := d.dedup.IsDelivered(ctx, cert.Key)
	if err != nil {
		return d.fail(ctx, cert, 0, fmt.Errorf("%w: dedup lookup: %v", models.ErrDelivery, err))
	}
	if delivered {
		return d.skip(log), nil
	}

	claimed, err := d.dedup.Claim(ctx, cert.Key, d.claimTTL)
	if err != nil {
		return d.fail(ctx, cert, 0, fmt.Errorf("%w: dedup claim: %v", models.ErrDelivery, err))
	}
	if !claimed {
		return d.fail(ctx, cert, 0, fmt.Errorf("%w: %w", models.ErrDelivery, models.ErrInFlight))
	}

	// Another worker may have finished between the lookup and the claim.
	delivered, err = d.dedup.IsDelivered(ctx, cert.Key)
	if err != nil {
		log.Warn("dedup re-check failed, delivering under claim", slog.Any("error", err))
	} else if delivered {
		d.release(ctx, log, cert.Key)
		return d.skip(log), nil
	}

	d.status.MarkPending(ctx, cert.Key, email)

	attempts := 0
	cfg := d.retryCfg
	cfg.OnRetry = func(attempt int, err error) {
		d.metrics.IncRetried()
		log.Warn("certificate delivery failed, retrying",
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)
	}
	sendErr := retry.Do(ctx, cfg, func(attempt int) error {
		attempts = attempt
		return d.send(ctx, cert)
	})
	if sendErr != nil {
		d.release(ctx, log, cert.Key)
		return d.fail(ctx, cert, attempts, fmt.Errorf("%w: %s after %d attempts: %v", models.ErrDelivery, cert.Key, attempts, sendErr))
	}

	if err := d.dedup.MarkDelivered(ctx, cert.Key); err != nil {
		// The certificate is out; only the flag is missing.
		log.Error("failed to mark certificate delivered", slog.Any("error", err))
	}
	d.status.MarkDelivered(ctx, cert.Key, email, attempts)
	d.metrics.IncDelivered()
	log.Info("certificate delivered", slog.Int("attempts", attempts))

	return DeliveryResult{State: models.StateDelivered, Attempts: attempts}, nil
}

func (d *DeliveryCoordinator) send(ctx context.Context, cert RenderedCertificate) error {
	if err := d.blobs.Upload(ctx, cert.Key, "image/png", cert.PNG); err != nil {
		return err
	}
	if d.acceptance == nil {
		return nil
	}
	return d.acceptance.Submit(ctx, submissionFor(cert))
}

func (d *DeliveryCoordinator) skip(log *slog.Logger) DeliveryResult {
	d.metrics.IncSkipped()
	log.Info("certificate already delivered, skipping")
	return DeliveryResult{State: models.StateDelivered, Skipped: true}
}

func (d *DeliveryCoordinator) fail(ctx context.Context, cert RenderedCertificate, attempts int, err error) (DeliveryResult, error) {
	d.metrics.IncFailed()
	d.status.MarkFailed(ctx, cert.Key, cert.Participant.Email, attempts, err.Error())
	d.logger.Error("certificate delivery failed",
		slog.String("certificate_key", cert.Key),
		slog.Int("attempts", attempts),
		slog.Any("error", err),
	)
	return DeliveryResult{State: models.StateFailed, Attempts: attempts}, err
}

func (d *DeliveryCoordinator) release(ctx context.Context, log *slog.Logger, key string) {
	if err := d.dedup.Release(ctx, key); err != nil {
		log.Warn("failed to release delivery claim", slog.Any("error", err))
	}
}

func submissionFor(cert RenderedCertificate) Submission {
	p := cert.Participant
	sub := Submission{
		ValidationCode: p.FormattedValidationCode(),
		FirstName:      p.FirstName,
		LastName:       p.LastName,
		Email:          p.Email,
		Filename:       cert.Key,
		Image:          cert.PNG,
	}
	if p.Event != nil {
		sub.EventID = p.Event.OrderID
		sub.EventDate = p.Event.OrderDate
	}
	return sub
}
