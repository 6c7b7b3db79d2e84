// server/internal/database/seeder.go
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"krishisetu-api-server/config"
	"krishisetu-api-server/internal/auth"
	"krishisetu-api-server/internal/logger"
	"krishisetu-api-server/internal/models"
)

// SeedAdmin tạo tài khoản admin mặc định nếu chưa có.
func SeedAdmin(ctx context.Context, users UserRepository, cfg config.SeedConfig) error {
	if !cfg.Enabled {
		return nil
	}

	_, err := users.FindByEmail(ctx, cfg.AdminEmail)
	if err == nil {
		logger.Log.WithField("email", cfg.AdminEmail).Info("Admin already exists. Seeding skipped.")
		return nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return fmt.Errorf("look up admin: %w", err)
	}

	logger.Log.Info("Admin not found. Seeding...")
	hashedPassword, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	admin := &models.User{
		Name:         "Admin",
		Email:        cfg.AdminEmail,
		PasswordHash: hashedPassword,
		Role:         models.RoleAdmin,
		CreatedAt:    time.Now(),
	}
	if err := users.Create(ctx, admin); err != nil {
		return fmt.Errorf("create admin: %w", err)
	}

	logger.Log.Info("Admin seeded successfully.")
	return nil
}
