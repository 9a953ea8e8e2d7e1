// cmd/verificar/main.go — Escaneo de integridad de documentos desde la CLI.
// Uso: go run cmd/verificar/main.go -periodo <uuid>
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"nominamx/internal/config"
	"nominamx/internal/infra"
	"nominamx/internal/repository"
	"nominamx/internal/service"

	"github.com/google/uuid"
)

func main() {
	periodoFlag := flag.String("periodo", "", "UUID del periodo a verificar")
	flag.Parse()

	periodoID, err := uuid.Parse(*periodoFlag)
	if err != nil {
		log.Fatalf("flag -periodo requiere un UUID valido: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect error: %v", err)
	}
	store, err := infra.NewLocalStore(cfg.DocStoragePath)
	if err != nil {
		log.Fatalf("storage error: %v", err)
	}

	svc := service.NewDocumentoService(
		repository.NewDocumentoRepository(db),
		repository.NewReciboRepository(db),
		repository.NewBitacoraRepository(db),
		store,
	)

	resultado, err := svc.VerificarIntegridadPeriodo(context.Background(), periodoID)
	if err != nil {
		log.Fatalf("verificacion fallida: %v", err)
	}

	fmt.Printf("Periodo %s: %d documentos — %d validos, %d corruptos, %d faltantes\n",
		resultado.PeriodoID, resultado.Total, resultado.Validos, resultado.Invalidos, resultado.Faltantes)
	for _, r := range resultado.Resultados {
		switch {
		case !r.ArchivoExiste:
			fmt.Printf("  FALTANTE  %s %s v%d (archivo no encontrado en storage)\n", r.DocumentoID, r.Tipo, r.Version)
		case !r.Valido:
			fmt.Printf("  CORRUPTO  %s %s v%d\n            esperado %s\n            actual   %s\n",
				r.DocumentoID, r.Tipo, r.Version, r.HashEsperado, r.HashActual)
		}
	}
	if resultado.Invalidos == 0 && resultado.Faltantes == 0 {
		fmt.Println("Integridad verificada: todos los documentos coinciden con su hash registrado")
	}
}
