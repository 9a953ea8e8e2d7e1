package repository

import (
	"context"

	"nominamx/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DocumentoRepository interface {
	CreateTx(tx *gorm.DB, d *model.DocumentoFiscal) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.DocumentoFiscal, error)
	// FindByHash looks for ANY version (active or superseded) of the same
	// (recibo, tipo) with identical content — the deduplication check.
	FindByHash(ctx context.Context, reciboID uuid.UUID, tipo, hash string) (*model.DocumentoFiscal, error)
	MaxVersionTx(tx *gorm.DB, reciboID uuid.UUID, tipo string) (int, error)
	// DeactivatePriorTx marks every active version of (recibo, tipo) except
	// exceptID as superseded. Runs inside the metadata transaction.
	DeactivatePriorTx(tx *gorm.DB, reciboID uuid.UUID, tipo string, exceptID uuid.UUID) error
	Update(ctx context.Context, d *model.DocumentoFiscal) error
	ListActivosByPeriodo(ctx context.Context, periodoID uuid.UUID) ([]model.DocumentoFiscal, error)
	DB() *gorm.DB
}

type documentoRepo struct{ db *gorm.DB }

func NewDocumentoRepository(db *gorm.DB) DocumentoRepository { return &documentoRepo{db: db} }

func (r *documentoRepo) DB() *gorm.DB { return r.db }

func (r *documentoRepo) CreateTx(tx *gorm.DB, d *model.DocumentoFiscal) error {
	return tx.Create(d).Error
}

func (r *documentoRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.DocumentoFiscal, error) {
	var d model.DocumentoFiscal
	err := r.db.WithContext(ctx).First(&d, id).Error
	return &d, err
}

func (r *documentoRepo) FindByHash(ctx context.Context, reciboID uuid.UUID, tipo, hash string) (*model.DocumentoFiscal, error) {
	var d model.DocumentoFiscal
	err := r.db.WithContext(ctx).
		Where("recibo_id = ? AND tipo = ? AND content_hash = ?", reciboID, tipo, hash).
		First(&d).Error
	return &d, err
}

func (r *documentoRepo) MaxVersionTx(tx *gorm.DB, reciboID uuid.UUID, tipo string) (int, error) {
	var max int
	err := tx.Model(&model.DocumentoFiscal{}).
		Where("recibo_id = ? AND tipo = ?", reciboID, tipo).
		Select("COALESCE(MAX(version), 0)").
		Scan(&max).Error
	return max, err
}

func (r *documentoRepo) DeactivatePriorTx(tx *gorm.DB, reciboID uuid.UUID, tipo string, exceptID uuid.UUID) error {
	return tx.Model(&model.DocumentoFiscal{}).
		Where("recibo_id = ? AND tipo = ? AND activo = true AND id <> ?", reciboID, tipo, exceptID).
		Update("activo", false).Error
}

func (r *documentoRepo) Update(ctx context.Context, d *model.DocumentoFiscal) error {
	return r.db.WithContext(ctx).Save(d).Error
}

func (r *documentoRepo) ListActivosByPeriodo(ctx context.Context, periodoID uuid.UUID) ([]model.DocumentoFiscal, error) {
	var docs []model.DocumentoFiscal
	err := r.db.WithContext(ctx).
		Joins("JOIN recibos ON recibos.id = documentos_fiscales.recibo_id").
		Where("recibos.periodo_id = ? AND documentos_fiscales.activo = true", periodoID).
		Order("documentos_fiscales.created_at ASC").
		Find(&docs).Error
	return docs, err
}
