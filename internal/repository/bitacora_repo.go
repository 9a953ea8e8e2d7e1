package repository

import (
	"context"

	"nominamx/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BitacoraRepository interface {
	Create(ctx context.Context, b *model.Bitacora) error
	CreateTx(tx *gorm.DB, b *model.Bitacora) error
	ListByRecibo(ctx context.Context, reciboID uuid.UUID) ([]model.Bitacora, error)
	ListByPeriodo(ctx context.Context, periodoID uuid.UUID) ([]model.Bitacora, error)
}

type bitacoraRepo struct{ db *gorm.DB }

func NewBitacoraRepository(db *gorm.DB) BitacoraRepository { return &bitacoraRepo{db: db} }

func (r *bitacoraRepo) Create(ctx context.Context, b *model.Bitacora) error {
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *bitacoraRepo) CreateTx(tx *gorm.DB, b *model.Bitacora) error {
	return tx.Create(b).Error
}

func (r *bitacoraRepo) ListByRecibo(ctx context.Context, reciboID uuid.UUID) ([]model.Bitacora, error) {
	var entries []model.Bitacora
	err := r.db.WithContext(ctx).
		Where("recibo_id = ?", reciboID).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}

func (r *bitacoraRepo) ListByPeriodo(ctx context.Context, periodoID uuid.UUID) ([]model.Bitacora, error) {
	var entries []model.Bitacora
	err := r.db.WithContext(ctx).
		Where("periodo_id = ?", periodoID).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}
