package repository

import (
	"context"
	"time"

	"nominamx/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReciboRepository interface {
	Create(ctx context.Context, tx *gorm.DB, r *model.Recibo) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Recibo, error)
	// FindByIDForUpdateTx re-reads the row under FOR UPDATE inside tx so the
	// recalculation preconditions and the mutation serialize on the row lock.
	FindByIDForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.Recibo, error)
	FindActivo(ctx context.Context, periodoID, empleadoID uuid.UUID) (*model.Recibo, error)
	ListByPeriodo(ctx context.Context, periodoID uuid.UUID) ([]model.Recibo, error)
	Update(ctx context.Context, r *model.Recibo) error
	UpdateTx(tx *gorm.DB, r *model.Recibo) error
	ListPendingRetries(ctx context.Context, before time.Time, limit int) ([]model.Recibo, error)
	DB() *gorm.DB // exposes the DB for transaction creation in service layer
}

type reciboRepo struct{ db *gorm.DB }

func NewReciboRepository(db *gorm.DB) ReciboRepository { return &reciboRepo{db: db} }

func (r *reciboRepo) DB() *gorm.DB { return r.db }

func (r *reciboRepo) Create(ctx context.Context, tx *gorm.DB, rec *model.Recibo) error {
	return tx.WithContext(ctx).Create(rec).Error
}

func (r *reciboRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Recibo, error) {
	var rec model.Recibo
	err := r.db.WithContext(ctx).
		Preload("Conceptos", func(db *gorm.DB) *gorm.DB { return db.Order("orden ASC") }).
		First(&rec, id).Error
	return &rec, err
}

func (r *reciboRepo) FindByIDForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.Recibo, error) {
	var rec model.Recibo
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&rec, id).Error
	if err != nil {
		return nil, err
	}
	// Conceptos loaded separately — Preload cannot be combined with the lock clause
	err = tx.Where("recibo_id = ?", id).Order("orden ASC").Find(&rec.Conceptos).Error
	return &rec, err
}

func (r *reciboRepo) FindActivo(ctx context.Context, periodoID, empleadoID uuid.UUID) (*model.Recibo, error) {
	var rec model.Recibo
	err := r.db.WithContext(ctx).
		Preload("Conceptos", func(db *gorm.DB) *gorm.DB { return db.Order("orden ASC") }).
		Where("periodo_id = ? AND empleado_id = ? AND activo = true", periodoID, empleadoID).
		First(&rec).Error
	return &rec, err
}

func (r *reciboRepo) ListByPeriodo(ctx context.Context, periodoID uuid.UUID) ([]model.Recibo, error) {
	var recibos []model.Recibo
	err := r.db.WithContext(ctx).
		Where("periodo_id = ?", periodoID).
		Order("created_at ASC").
		Find(&recibos).Error
	return recibos, err
}

func (r *reciboRepo) Update(ctx context.Context, rec *model.Recibo) error {
	return r.db.WithContext(ctx).Save(rec).Error
}

func (r *reciboRepo) UpdateTx(tx *gorm.DB, rec *model.Recibo) error {
	return tx.Save(rec).Error
}

func (r *reciboRepo) ListPendingRetries(ctx context.Context, before time.Time, limit int) ([]model.Recibo, error) {
	var recibos []model.Recibo
	err := r.db.WithContext(ctx).
		Where("estado = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?", model.ReciboTimbradoError, before).
		Order("next_retry_at ASC").
		Limit(limit).
		Find(&recibos).Error
	return recibos, err
}
