package db

import (
	"article-service/internal/domain"
	"article-service/internal/render"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Migrate runs database migrations and seeds the renderer table.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&domain.User{},
		&domain.Renderer{},
		&domain.Page{},
		&domain.Revision{},
		&domain.Tag{},
		&domain.Vote{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	// Page names are unique regardless of case; the column index alone compares bytes.
	err = db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_article_pages_name_lower ON article_pages (LOWER(name))").Error
	if err != nil {
		return fmt.Errorf("page name index: %w", err)
	}

	if err := SeedRenderers(db); err != nil {
		return err
	}

	log.Info().Msg("database schema migrated successfully")
	return nil
}

// SeedRenderers inserts the fixed renderer set. Ids follow render.Names order,
// so switching renderers cycles 1..len(render.Names).
func SeedRenderers(db *gorm.DB) error {
	for i, name := range render.Names {
		r := domain.Renderer{ID: uint64(i + 1), Name: name}
		err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&r).Error
		if err != nil {
			return fmt.Errorf("seed renderer %s: %w", name, err)
		}
	}
	return nil
}

// SeedAdmin creates the administrator account when it does not exist yet.
// An empty password skips seeding.
func SeedAdmin(db *gorm.DB, email, password string) error {
	if password == "" {
		return nil
	}

	var existing domain.User
	err := db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		log.Debug().Str("email", email).Msg("admin user already exists")
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	admin := domain.User{
		Name:         "admin",
		Email:        email,
		PasswordHash: string(hash),
		Role:         domain.RoleAdmin,
		TokenVersion: 1,
		IsActive:     true,
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}
	log.Info().Str("email", email).Msg("created admin user")
	return nil
}
