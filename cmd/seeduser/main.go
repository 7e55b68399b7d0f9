// cmd/seeduser creates or resets a Superuser account.
// Uso: go run ./cmd/seeduser -username admin -email admin@latribu.cr -password secreto
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/kerm1977/plantilla1/internal/config"
	"github.com/kerm1977/plantilla1/internal/infra"
	"github.com/kerm1977/plantilla1/internal/model"
	"github.com/kerm1977/plantilla1/internal/policy"
	"github.com/kerm1977/plantilla1/internal/repository"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// .env is optional; variables already in the environment win.
	_ = godotenv.Load()

	username := flag.String("username", "admin", "nombre de usuario")
	email := flag.String("email", "", "email del Superuser")
	password := flag.String("password", "", "contraseña (obligatoria)")
	nombre := flag.String("nombre", "Admin", "nombre")
	apellido := flag.String("apellido", "La Tribu", "primer apellido")
	telefono := flag.String("telefono", "00000000", "teléfono")
	flag.Parse()

	if *password == "" {
		log.Fatal().Msg("-password is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	db, err := infra.NewDatabase(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("bcrypt error")
	}

	users := repository.NewUserRepository(db)
	ctx := context.Background()

	existing, err := users.FindByUsername(ctx, *username)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Fatal().Err(err).Msg("failed to look up user")
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		superusers, err := users.CountByRoleTx(tx, model.RoleSuperuser)
		if err != nil {
			return err
		}

		if existing == nil {
			if superusers >= policy.MaxSuperusers {
				return policy.ErrSuperuserLimit
			}
			u := &model.User{
				Username:       *username,
				PasswordHash:   string(hash),
				Role:           model.RoleSuperuser,
				AvatarURL:      model.DefaultAvatarURL,
				Nombre:         *nombre,
				PrimerApellido: *apellido,
				Telefono:       *telefono,
				Theme:          "light",
			}
			if e := strings.ToLower(strings.TrimSpace(*email)); e != "" {
				u.Email = &e
			}
			return users.CreateTx(tx, u)
		}

		if existing.Role != model.RoleSuperuser && superusers >= policy.MaxSuperusers {
			return policy.ErrSuperuserLimit
		}
		existing.PasswordHash = string(hash)
		existing.Role = model.RoleSuperuser
		now := time.Now().UTC()
		existing.FechaActualizacion = &now
		return users.UpdateTx(tx, existing)
	})
	if err != nil {
		log.Fatal().Err(err).Str("username", *username).Msg("seed failed")
	}
	log.Info().Str("username", *username).Msg("Superuser creado/actualizado")
}
