package service

// stubs_test.go — in-memory repository stubs shared by the service tests.
// DB() returns nil so runTx executes the callback without a real transaction.

import (
	"context"
	"errors"
	"sort"
	"time"

	"nominamx/internal/model"
	"nominamx/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var errStubNotFound = errors.New("not found")

// ── Recibos ──────────────────────────────────────────────────────────────────

type stubReciboRepo struct {
	recibos map[uuid.UUID]*model.Recibo
}

var _ repository.ReciboRepository = (*stubReciboRepo)(nil)

func newStubReciboRepo() *stubReciboRepo {
	return &stubReciboRepo{recibos: make(map[uuid.UUID]*model.Recibo)}
}

func (r *stubReciboRepo) DB() *gorm.DB { return nil }

func (r *stubReciboRepo) Create(_ context.Context, _ *gorm.DB, rec *model.Recibo) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	rec.CreatedAt = time.Now()
	// Enforce the partial unique index: one active recibo per (periodo, empleado)
	for _, existing := range r.recibos {
		if existing.Activo && rec.Activo &&
			existing.PeriodoID == rec.PeriodoID && existing.EmpleadoID == rec.EmpleadoID {
			return errors.New("duplicate key value violates unique constraint \"uq_recibos_activo\"")
		}
	}
	cp := *rec
	r.recibos[rec.ID] = &cp
	return nil
}

func (r *stubReciboRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Recibo, error) {
	rec, ok := r.recibos[id]
	if !ok {
		return nil, errStubNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *stubReciboRepo) FindByIDForUpdateTx(_ *gorm.DB, id uuid.UUID) (*model.Recibo, error) {
	return r.FindByID(context.Background(), id)
}

func (r *stubReciboRepo) FindActivo(_ context.Context, periodoID, empleadoID uuid.UUID) (*model.Recibo, error) {
	for _, rec := range r.recibos {
		if rec.Activo && rec.PeriodoID == periodoID && rec.EmpleadoID == empleadoID {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, errStubNotFound
}

func (r *stubReciboRepo) ListByPeriodo(_ context.Context, periodoID uuid.UUID) ([]model.Recibo, error) {
	var out []model.Recibo
	for _, rec := range r.recibos {
		if rec.PeriodoID == periodoID {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (r *stubReciboRepo) Update(_ context.Context, rec *model.Recibo) error {
	if _, ok := r.recibos[rec.ID]; !ok {
		return errStubNotFound
	}
	cp := *rec
	r.recibos[rec.ID] = &cp
	return nil
}

func (r *stubReciboRepo) UpdateTx(_ *gorm.DB, rec *model.Recibo) error {
	return r.Update(context.Background(), rec)
}

func (r *stubReciboRepo) ListPendingRetries(_ context.Context, before time.Time, limit int) ([]model.Recibo, error) {
	var out []model.Recibo
	for _, rec := range r.recibos {
		if rec.Estado == model.ReciboTimbradoError && rec.NextRetryAt != nil && rec.NextRetryAt.Before(before) {
			out = append(out, *rec)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// ── Snapshots ────────────────────────────────────────────────────────────────

type stubSnapshotRepo struct {
	snapshots []*model.SnapshotVersion
}

var _ repository.SnapshotRepository = (*stubSnapshotRepo)(nil)

func newStubSnapshotRepo() *stubSnapshotRepo { return &stubSnapshotRepo{} }

func (r *stubSnapshotRepo) CreateTx(_ *gorm.DB, s *model.SnapshotVersion) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.CreatedAt = time.Now()
	cp := *s
	r.snapshots = append(r.snapshots, &cp)
	return nil
}

func (r *stubSnapshotRepo) FindByReciboID(_ context.Context, reciboID uuid.UUID) (*model.SnapshotVersion, error) {
	for i := len(r.snapshots) - 1; i >= 0; i-- {
		if r.snapshots[i].ReciboID == reciboID {
			cp := *r.snapshots[i]
			return &cp, nil
		}
	}
	return nil, errStubNotFound
}

func (r *stubSnapshotRepo) ListByReciboID(_ context.Context, reciboID uuid.UUID) ([]model.SnapshotVersion, error) {
	var out []model.SnapshotVersion
	for _, s := range r.snapshots {
		if s.ReciboID == reciboID {
			out = append(out, *s)
		}
	}
	return out, nil
}

// ── Documentos ───────────────────────────────────────────────────────────────

type stubDocumentoRepo struct {
	documentos map[uuid.UUID]*model.DocumentoFiscal
}

var _ repository.DocumentoRepository = (*stubDocumentoRepo)(nil)

func newStubDocumentoRepo() *stubDocumentoRepo {
	return &stubDocumentoRepo{documentos: make(map[uuid.UUID]*model.DocumentoFiscal)}
}

func (r *stubDocumentoRepo) DB() *gorm.DB { return nil }

func (r *stubDocumentoRepo) CreateTx(_ *gorm.DB, d *model.DocumentoFiscal) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	d.CreatedAt = time.Now()
	cp := *d
	r.documentos[d.ID] = &cp
	return nil
}

func (r *stubDocumentoRepo) FindByID(_ context.Context, id uuid.UUID) (*model.DocumentoFiscal, error) {
	d, ok := r.documentos[id]
	if !ok {
		return nil, errStubNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *stubDocumentoRepo) FindByHash(_ context.Context, reciboID uuid.UUID, tipo, hash string) (*model.DocumentoFiscal, error) {
	for _, d := range r.documentos {
		if d.ReciboID == reciboID && d.Tipo == tipo && d.ContentHash == hash {
			cp := *d
			return &cp, nil
		}
	}
	return nil, errStubNotFound
}

func (r *stubDocumentoRepo) MaxVersionTx(_ *gorm.DB, reciboID uuid.UUID, tipo string) (int, error) {
	max := 0
	for _, d := range r.documentos {
		if d.ReciboID == reciboID && d.Tipo == tipo && d.Version > max {
			max = d.Version
		}
	}
	return max, nil
}

func (r *stubDocumentoRepo) DeactivatePriorTx(_ *gorm.DB, reciboID uuid.UUID, tipo string, exceptID uuid.UUID) error {
	for _, d := range r.documentos {
		if d.ReciboID == reciboID && d.Tipo == tipo && d.Activo && d.ID != exceptID {
			d.Activo = false
		}
	}
	return nil
}

func (r *stubDocumentoRepo) Update(_ context.Context, d *model.DocumentoFiscal) error {
	if _, ok := r.documentos[d.ID]; !ok {
		return errStubNotFound
	}
	cp := *d
	r.documentos[d.ID] = &cp
	return nil
}

func (r *stubDocumentoRepo) ListActivosByPeriodo(_ context.Context, _ uuid.UUID) ([]model.DocumentoFiscal, error) {
	var out []model.DocumentoFiscal
	for _, d := range r.documentos {
		if d.Activo {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ── Autorizaciones ───────────────────────────────────────────────────────────

type stubAutorizacionRepo struct {
	auths map[uuid.UUID]*model.AutorizacionTimbrado
}

var _ repository.AutorizacionRepository = (*stubAutorizacionRepo)(nil)

func newStubAutorizacionRepo() *stubAutorizacionRepo {
	return &stubAutorizacionRepo{auths: make(map[uuid.UUID]*model.AutorizacionTimbrado)}
}

func (r *stubAutorizacionRepo) DB() *gorm.DB { return nil }

func (r *stubAutorizacionRepo) CreateTx(_ *gorm.DB, a *model.AutorizacionTimbrado) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = time.Now()
	for _, existing := range r.auths {
		if existing.Activa && a.Activa && existing.PeriodoID == a.PeriodoID {
			return errors.New("duplicate key value violates unique constraint \"uq_autorizaciones_activa\"")
		}
	}
	cp := *a
	r.auths[a.ID] = &cp
	return nil
}

func (r *stubAutorizacionRepo) FindActivaByPeriodo(_ context.Context, periodoID uuid.UUID) (*model.AutorizacionTimbrado, error) {
	for _, a := range r.auths {
		if a.Activa && a.PeriodoID == periodoID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, errStubNotFound
}

func (r *stubAutorizacionRepo) UpdateTx(_ *gorm.DB, a *model.AutorizacionTimbrado) error {
	if _, ok := r.auths[a.ID]; !ok {
		return errStubNotFound
	}
	cp := *a
	r.auths[a.ID] = &cp
	return nil
}

func (r *stubAutorizacionRepo) ListByPeriodo(_ context.Context, periodoID uuid.UUID) ([]model.AutorizacionTimbrado, error) {
	var out []model.AutorizacionTimbrado
	for _, a := range r.auths {
		if a.PeriodoID == periodoID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ── Periodos / Empleados / Empresas ──────────────────────────────────────────

type stubPeriodoRepo struct {
	periodos map[uuid.UUID]*model.Periodo
}

var _ repository.PeriodoRepository = (*stubPeriodoRepo)(nil)

func newStubPeriodoRepo() *stubPeriodoRepo {
	return &stubPeriodoRepo{periodos: make(map[uuid.UUID]*model.Periodo)}
}

func (r *stubPeriodoRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Periodo, error) {
	p, ok := r.periodos[id]
	if !ok {
		return nil, errStubNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *stubPeriodoRepo) Update(_ context.Context, p *model.Periodo) error {
	cp := *p
	r.periodos[p.ID] = &cp
	return nil
}

func (r *stubPeriodoRepo) UpdateTx(_ *gorm.DB, p *model.Periodo) error {
	return r.Update(context.Background(), p)
}

// ── Usuarios ─────────────────────────────────────────────────────────────────

type stubUsuarioRepo struct {
	usuarios map[uuid.UUID]*model.Usuario
}

var _ repository.UsuarioRepository = (*stubUsuarioRepo)(nil)

func newStubUsuarioRepo() *stubUsuarioRepo {
	return &stubUsuarioRepo{usuarios: make(map[uuid.UUID]*model.Usuario)}
}

func (r *stubUsuarioRepo) Create(_ context.Context, u *model.Usuario) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	cp := *u
	r.usuarios[u.ID] = &cp
	return nil
}

func (r *stubUsuarioRepo) FindByUsername(_ context.Context, username string) (*model.Usuario, error) {
	for _, u := range r.usuarios {
		if u.Username == username && u.Activo {
			cp := *u
			return &cp, nil
		}
	}
	return nil, errStubNotFound
}

func (r *stubUsuarioRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Usuario, error) {
	u, ok := r.usuarios[id]
	if !ok {
		return nil, errStubNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *stubUsuarioRepo) List(_ context.Context) ([]model.Usuario, error) {
	var out []model.Usuario
	for _, u := range r.usuarios {
		if u.Activo {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *stubUsuarioRepo) ListAll(_ context.Context) ([]model.Usuario, error) {
	var out []model.Usuario
	for _, u := range r.usuarios {
		out = append(out, *u)
	}
	return out, nil
}

func (r *stubUsuarioRepo) Update(_ context.Context, u *model.Usuario) error {
	cp := *u
	r.usuarios[u.ID] = &cp
	return nil
}

func (r *stubUsuarioRepo) SoftDelete(_ context.Context, id uuid.UUID) error {
	u, ok := r.usuarios[id]
	if !ok {
		return errStubNotFound
	}
	u.Activo = false
	return nil
}

func (r *stubUsuarioRepo) Reactivar(_ context.Context, id uuid.UUID) error {
	u, ok := r.usuarios[id]
	if !ok {
		return errStubNotFound
	}
	u.Activo = true
	return nil
}

// ── Bitácora ─────────────────────────────────────────────────────────────────

type stubBitacoraRepo struct {
	entradas []model.Bitacora
}

var _ repository.BitacoraRepository = (*stubBitacoraRepo)(nil)

func newStubBitacoraRepo() *stubBitacoraRepo { return &stubBitacoraRepo{} }

func (r *stubBitacoraRepo) Create(_ context.Context, b *model.Bitacora) error {
	b.ID = uuid.New()
	b.CreatedAt = time.Now()
	r.entradas = append(r.entradas, *b)
	return nil
}

func (r *stubBitacoraRepo) CreateTx(_ *gorm.DB, b *model.Bitacora) error {
	return r.Create(context.Background(), b)
}

func (r *stubBitacoraRepo) ListByRecibo(_ context.Context, reciboID uuid.UUID) ([]model.Bitacora, error) {
	var out []model.Bitacora
	for _, b := range r.entradas {
		if b.ReciboID != nil && *b.ReciboID == reciboID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *stubBitacoraRepo) ListByPeriodo(_ context.Context, periodoID uuid.UUID) ([]model.Bitacora, error) {
	var out []model.Bitacora
	for _, b := range r.entradas {
		if b.PeriodoID != nil && *b.PeriodoID == periodoID {
			out = append(out, b)
		}
	}
	return out, nil
}
