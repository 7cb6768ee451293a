package services

import (
	"context"
	"log/slog"

	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/internal/models"
	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/internal/repository"
)

// StatusUpdater records delivery states. Failures are logged, never returned:
// the status table is informational, the dedup store is the source of truth.
// A nil store turns every call into a no-op.
type StatusUpdater struct {
	store  *repository.StatusStore
	logger *slog.Logger
}

func NewStatusUpdater(store *repository.StatusStore, logger *slog.Logger) *StatusUpdater {
	return &StatusUpdater{
		store:  store,
		logger: logger,
	}
}

func (s *StatusUpdater) MarkPending(ctx context.Context, key, email string) {
	s.update(ctx, repository.CertificateStatus{
		CertificateKey: key,
		Status:         string(models.StatePending),
		Email:          email,
	})
}

func (s *StatusUpdater) MarkDelivered(ctx context.Context, key, email string, attempts int) {
	s.update(ctx, repository.CertificateStatus{
		CertificateKey: key,
		Status:         string(models.StateDelivered),
		Email:          email,
		Attempts:       attempts,
	})
}

func (s *StatusUpdater) MarkFailed(ctx context.Context, key, email string, attempts int, detail string) {
	s.update(ctx, repository.CertificateStatus{
		CertificateKey: key,
		Status:         string(models.StateFailed),
		Email:          email,
		Attempts:       attempts,
		Detail:         detail,
	})
}

func (s *StatusUpdater) update(ctx context.Context, st repository.CertificateStatus) {
	if s == nil || s.store == nil {
		return
	}
	if err := s.store.UpdateStatus(ctx, st); err != nil {
		s.logger.Error("failed to update certificate status",
			slog.String("certificate_key", st.CertificateKey),
			slog.String("status", st.Status),
			slog.Any("error", err),
		)
	}
}
