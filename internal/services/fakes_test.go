package services

import (
	"context"
	"errors"
	"image"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/internal/models"
	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/internal/repository"
)

var errUnavailable = errors.New("remote unavailable")

// fakeBlobStore fails the first failures calls, or every call when failures < 0.
type fakeBlobStore struct {
	mu       sync.Mutex
	calls    int
	failures int
	delay    time.Duration
	objects  map[string][]byte
}

func (f *fakeBlobStore) Upload(_ context.Context, key, _ string, data []byte) error {
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures < 0 || f.calls <= f.failures {
		return errUnavailable
	}
	if f.objects == nil {
		f.objects = make(map[string][]byte)
	}
	f.objects[key] = data
	return nil
}

func (f *fakeBlobStore) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeBlobStore) Keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		keys = append(keys, k)
	}
	return keys
}

type fakeAcceptance struct {
	mu          sync.Mutex
	submissions []Submission
	err         error
}

func (f *fakeAcceptance) Submit(_ context.Context, sub Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submissions = append(f.submissions, sub)
	return f.err
}

func (f *fakeAcceptance) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submissions)
}

// fakeOutcomeSender fails the first failures calls, or every call when err is set.
type fakeOutcomeSender struct {
	mu       sync.Mutex
	ids      []string
	batches  [][]models.OutcomeRecord
	failures int
	err      error
}

func (f *fakeOutcomeSender) Send(_ context.Context, batchID string, outcomes []models.OutcomeRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, batchID)
	f.batches = append(f.batches, outcomes)
	if f.err != nil {
		return f.err
	}
	if len(f.ids) <= f.failures {
		return errUnavailable
	}
	return nil
}

// fakeAssets serves in-memory images by URL.
type fakeAssets struct {
	mu     sync.Mutex
	images map[string]image.Image
	calls  map[string]int
}

func (f *fakeAssets) Fetch(_ context.Context, url string) (image.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[url]++
	img, ok := f.images[url]
	if !ok {
		return nil, models.ErrFetch
	}
	return img, nil
}

func newTestStatusStore(t *testing.T) *repository.StatusStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "status.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	store, err := repository.NewStatusStore(db, "")
	require.NoError(t, err)
	return store
}

func newTestParticipant(t *testing.T) *models.Participant {
	t.Helper()
	p, err := models.NewParticipant("Jardel", "Silva Santos", "jardel@example.com", "", "")
	require.NoError(t, err)
	p.ValidationCode = "abc123def"
	p.Certificate = &models.Certificate{Background: "mem://bg"}
	p.Event = &models.Event{
		OrderID:     87,
		ProductID:   9,
		ProductName: "Acme Floripa",
		OrderDate:   time.Date(2024, 11, 12, 21, 41, 38, 0, time.UTC),
	}
	return p
}
