// cmd/seeduser/main.go — Crea/actualiza un usuario local de prueba.
// Uso: go run ./cmd/seeduser -cedula 12345678 -nombre "Empleado Demo"
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/infra"
	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/model"
	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/repository"
)

func main() {
	cedula := flag.String("cedula", "12345678", "documento del usuario")
	nombre := flag.String("nombre", "Empleado Demo", "nombre completo")
	empresa := flag.String("empresa", "principal", "empresa")
	template := flag.Int("template", 0, "slot de huella (0 = sin huella)")
	flag.Parse()

	path := os.Getenv("DATABASE_PATH")
	if path == "" {
		path = "./data/bioentry.db"
	}

	db, err := infra.NewDatabase(path)
	if err != nil {
		log.Fatalf("db open error: %v", err)
	}

	user := &model.User{
		Cedula:   *cedula,
		Nombre:   *nombre,
		Empresa:  *empresa,
		IsActive: true,
		Synced:   false,
	}
	if *template > 0 {
		user.FingerprintTemplateID = template
	}

	repo := repository.NewUserRepository(db)
	if err := repo.Upsert(context.Background(), user); err != nil {
		log.Fatalf("upsert error: %v", err)
	}
	fmt.Printf("✅ Usuario '%s' (%s) creado/actualizado\n", *nombre, *cedula)
}
