package repository

import (
	"context"

	"nominamx/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SnapshotRepository interface {
	CreateTx(tx *gorm.DB, s *model.SnapshotVersion) error
	// FindByReciboID returns the most recent snapshot of one recibo row,
	// with its ordered concept copies.
	FindByReciboID(ctx context.Context, reciboID uuid.UUID) (*model.SnapshotVersion, error)
	ListByReciboID(ctx context.Context, reciboID uuid.UUID) ([]model.SnapshotVersion, error)
}

type snapshotRepo struct{ db *gorm.DB }

func NewSnapshotRepository(db *gorm.DB) SnapshotRepository { return &snapshotRepo{db: db} }

func (r *snapshotRepo) CreateTx(tx *gorm.DB, s *model.SnapshotVersion) error {
	return tx.Create(s).Error
}

func (r *snapshotRepo) FindByReciboID(ctx context.Context, reciboID uuid.UUID) (*model.SnapshotVersion, error) {
	var s model.SnapshotVersion
	err := r.db.WithContext(ctx).
		Preload("Conceptos", func(db *gorm.DB) *gorm.DB { return db.Order("orden ASC") }).
		Where("recibo_id = ?", reciboID).
		Order("created_at DESC").
		First(&s).Error
	return &s, err
}

func (r *snapshotRepo) ListByReciboID(ctx context.Context, reciboID uuid.UUID) ([]model.SnapshotVersion, error) {
	var snaps []model.SnapshotVersion
	err := r.db.WithContext(ctx).
		Preload("Conceptos", func(db *gorm.DB) *gorm.DB { return db.Order("orden ASC") }).
		Where("recibo_id = ?", reciboID).
		Order("created_at ASC").
		Find(&snaps).Error
	return snaps, err
}
