package services

import (
	"context"
	"image"
	"time"

	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/internal/models"
)

// AssetResolver fetches and decodes a remote image.
type AssetResolver interface {
	Fetch(ctx context.Context, url string) (image.Image, error)
}

// BlobStore stores rendered certificates under their certificate key.
type BlobStore interface {
	Upload(ctx context.Context, key, contentType string, data []byte) error
}

// Submission is what the acceptance endpoint receives for one certificate.
type Submission struct {
	ValidationCode string
	FirstName      string
	LastName       string
	Email          string
	EventID        int64
	EventDate      time.Time
	Filename       string
	Image          []byte
}

// AcceptanceSender posts certificate metadata and image to the remote endpoint.
type AcceptanceSender interface {
	Submit(ctx context.Context, sub Submission) error
}

// OutcomeSender delivers a batch of outcome records to the notification channel.
type OutcomeSender interface {
	Send(ctx context.Context, batchID string, outcomes []models.OutcomeRecord) error
}

// DedupStore records which certificate keys were delivered. Claim is a
// set-if-absent on an in-flight marker that expires after ttl.
type DedupStore interface {
	IsDelivered(ctx context.Context, key string) (bool, error)
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
	MarkDelivered(ctx context.Context, key string) error
}
