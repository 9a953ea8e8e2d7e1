package repository

import (
	"context"

	"nominamx/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AutorizacionRepository interface {
	CreateTx(tx *gorm.DB, a *model.AutorizacionTimbrado) error
	FindActivaByPeriodo(ctx context.Context, periodoID uuid.UUID) (*model.AutorizacionTimbrado, error)
	UpdateTx(tx *gorm.DB, a *model.AutorizacionTimbrado) error
	ListByPeriodo(ctx context.Context, periodoID uuid.UUID) ([]model.AutorizacionTimbrado, error)
	DB() *gorm.DB
}

type autorizacionRepo struct{ db *gorm.DB }

func NewAutorizacionRepository(db *gorm.DB) AutorizacionRepository { return &autorizacionRepo{db: db} }

func (r *autorizacionRepo) DB() *gorm.DB { return r.db }

func (r *autorizacionRepo) CreateTx(tx *gorm.DB, a *model.AutorizacionTimbrado) error {
	return tx.Create(a).Error
}

func (r *autorizacionRepo) FindActivaByPeriodo(ctx context.Context, periodoID uuid.UUID) (*model.AutorizacionTimbrado, error) {
	var a model.AutorizacionTimbrado
	err := r.db.WithContext(ctx).
		Where("periodo_id = ? AND activa = true", periodoID).
		First(&a).Error
	return &a, err
}

func (r *autorizacionRepo) UpdateTx(tx *gorm.DB, a *model.AutorizacionTimbrado) error {
	return tx.Save(a).Error
}

func (r *autorizacionRepo) ListByPeriodo(ctx context.Context, periodoID uuid.UUID) ([]model.AutorizacionTimbrado, error) {
	var auths []model.AutorizacionTimbrado
	err := r.db.WithContext(ctx).
		Where("periodo_id = ?", periodoID).
		Order("created_at ASC").
		Find(&auths).Error
	return auths, err
}
