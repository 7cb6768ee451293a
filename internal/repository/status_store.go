package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CertificateStatus is one row per certificate key.
type CertificateStatus struct {
	CertificateKey string `gorm:"primaryKey"`
	Status         string
	Email          string
	Attempts       int
	Detail         string
	UpdatedAt      time.Time
}

type StatusStore struct {
	db        *gorm.DB
	tableName string
}

func NewStatusStore(db *gorm.DB, tableName string) (*StatusStore, error) {
	if tableName == "" {
		tableName = "certificate_statuses"
	}
	if err := db.Table(tableName).AutoMigrate(&CertificateStatus{}); err != nil {
		return nil, err
	}
	return &StatusStore{
		db:        db,
		tableName: tableName,
	}, nil
}

// UpdateStatus upserts the status row of a certificate.
func (s *StatusStore) UpdateStatus(ctx context.Context, st CertificateStatus) error {
	st.UpdatedAt = time.Now()
	return s.db.WithContext(ctx).Table(s.tableName).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "certificate_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "email", "attempts", "detail", "updated_at"}),
		}).Create(&st).Error
}

// Get returns the status row of key, or gorm.ErrRecordNotFound.
func (s *StatusStore) Get(ctx context.Context, key string) (*CertificateStatus, error) {
	var st CertificateStatus
	err := s.db.WithContext(ctx).Table(s.tableName).
		Where("certificate_key = ?", key).
		First(&st).Error
	if err != nil {
		return nil, err
	}
	return &st, nil
}
