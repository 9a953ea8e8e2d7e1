package infra

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// FileStore persists fiscal artifact bytes outside the database. The registry
// row in documentos_fiscales is the source of truth for the expected hash;
// the store only moves bytes.
type FileStore interface {
	Guardar(ruta string, contenido []byte) error
	Leer(ruta string) ([]byte, error)
	Existe(ruta string) bool
}

// LocalStore writes artifacts under a base directory. Paths are deterministic
// per (periodo, recibo, tipo, version) so re-stores of identical content land
// on the same file.
type LocalStore struct {
	base string
}

func NewLocalStore(base string) (*LocalStore, error) {
	if err := os.MkdirAll(base, 0o750); err != nil {
		return nil, fmt.Errorf("creating storage root %s: %w", base, err)
	}
	return &LocalStore{base: base}, nil
}

// RutaDocumento builds the canonical relative path of one stored artifact.
func RutaDocumento(periodoID, reciboID uuid.UUID, tipo string, version int) string {
	return filepath.Join(
		"periodos", periodoID.String(),
		"recibos", reciboID.String(),
		fmt.Sprintf("%s_v%d%s", tipo, version, extensionDe(tipo)),
	)
}

func extensionDe(tipo string) string {
	switch tipo {
	case "xml_original", "xml_timbrado", "solicitud_cancelacion", "acuse_cancelacion":
		return ".xml"
	case "pdf_recibo", "reporte_auditoria":
		return ".pdf"
	default:
		return ".bin"
	}
}

func (s *LocalStore) Guardar(ruta string, contenido []byte) error {
	abs := filepath.Join(s.base, ruta)
	if err := os.MkdirAll(filepath.Dir(abs), 0o750); err != nil {
		return fmt.Errorf("creating directory for %s: %w", ruta, err)
	}
	// Write-then-rename so a crash never leaves a half-written artifact
	tmp := abs + ".tmp"
	if err := os.WriteFile(tmp, contenido, 0o640); err != nil {
		return fmt.Errorf("writing %s: %w", ruta, err)
	}
	if err := os.Rename(tmp, abs); err != nil {
		return fmt.Errorf("finalizing %s: %w", ruta, err)
	}
	return nil
}

func (s *LocalStore) Leer(ruta string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.base, ruta))
}

func (s *LocalStore) Existe(ruta string) bool {
	_, err := os.Stat(filepath.Join(s.base, ruta))
	return err == nil
}
