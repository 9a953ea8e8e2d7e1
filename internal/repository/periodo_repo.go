package repository

import (
	"context"

	"nominamx/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PeriodoRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Periodo, error)
	Update(ctx context.Context, p *model.Periodo) error
	UpdateTx(tx *gorm.DB, p *model.Periodo) error
}

type periodoRepo struct{ db *gorm.DB }

func NewPeriodoRepository(db *gorm.DB) PeriodoRepository { return &periodoRepo{db: db} }

func (r *periodoRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Periodo, error) {
	var p model.Periodo
	err := r.db.WithContext(ctx).First(&p, id).Error
	return &p, err
}

func (r *periodoRepo) Update(ctx context.Context, p *model.Periodo) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *periodoRepo) UpdateTx(tx *gorm.DB, p *model.Periodo) error {
	return tx.Save(p).Error
}

// ── Empleado ─────────────────────────────────────────────────────────────────

type EmpleadoRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Empleado, error)
}

type empleadoRepo struct{ db *gorm.DB }

func NewEmpleadoRepository(db *gorm.DB) EmpleadoRepository { return &empleadoRepo{db: db} }

func (r *empleadoRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Empleado, error) {
	var e model.Empleado
	err := r.db.WithContext(ctx).First(&e, id).Error
	return &e, err
}

// ── Empresa ──────────────────────────────────────────────────────────────────

type EmpresaRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Empresa, error)
}

type empresaRepo struct{ db *gorm.DB }

func NewEmpresaRepository(db *gorm.DB) EmpresaRepository { return &empresaRepo{db: db} }

func (r *empresaRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Empresa, error) {
	var e model.Empresa
	err := r.db.WithContext(ctx).First(&e, id).Error
	return &e, err
}
