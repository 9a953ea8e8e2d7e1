package model

import (
	"time"

	"github.com/google/uuid"
)

// Estados de un periodo de nómina.
const (
	PeriodoAbierto   = "abierto"
	PeriodoCalculado = "calculado"
	PeriodoAprobado  = "aprobado"
	PeriodoTimbrado  = "timbrado"
	PeriodoPagado    = "pagado"
	PeriodoCerrado   = "cerrado"
)

// Periodo is one pay period of one empresa.
// Estado: "abierto" | "calculado" | "aprobado" | "timbrado" | "pagado" | "cerrado"
type Periodo struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	EmpresaID uuid.UUID `gorm:"type:uuid;not null;index"`
	Nombre    string    `gorm:"not null"`
	FechaInicio time.Time `gorm:"not null"`
	FechaFin    time.Time `gorm:"not null"`
	Estado      string    `gorm:"type:varchar(20);not null;default:'abierto'"`

	// Authorization flags — mirror of the active AutorizacionTimbrado
	AutorizadoTimbrado bool `gorm:"not null;default:false"`
	AutorizadoAt       *time.Time
	AutorizadoPor      *uuid.UUID `gorm:"type:uuid"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Empresa is the employer. RFC is the Mexican tax id.
type Empresa struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	RFC              string    `gorm:"type:varchar(13);uniqueIndex;not null"`
	RazonSocial      string    `gorm:"not null"`
	RegistroPatronal *string   `gorm:"type:varchar(20)"`
	Activa           bool      `gorm:"not null;default:true"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Empleado is one employee of an empresa.
type Empleado struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	EmpresaID   uuid.UUID `gorm:"type:uuid;not null;index"`
	NumEmpleado string    `gorm:"type:varchar(20);not null"`
	Nombre      string    `gorm:"not null"`
	RFC         string    `gorm:"type:varchar(13);not null"`
	CURP        *string   `gorm:"type:varchar(18)"`
	NSS         *string   `gorm:"type:varchar(11)"`
	// Email: when present, the email worker mails the stamped receipt PDF
	Email     *string
	Activo    bool `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
