package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dhrustimirsdar/customerreviewpost/internal/config"
	"github.com/dhrustimirsdar/customerreviewpost/internal/utils"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Open connects to the configured database without touching the global.
func Open(cfg *config.DatabaseConfig, logLevel logger.LogLevel) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(sqliteDSN(cfg.DSN))
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	return db, nil
}

// sqliteDSN turns on foreign key enforcement so messages cannot
// reference a missing complaint.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=on"
}

func InitDB(cfg *config.DatabaseConfig, debug bool) error {
	level := logger.Warn
	if debug {
		level = logger.Info
	}
	db, err := Open(cfg, level)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

func AutoMigrate() error {
	return Migrate(DB)
}

// Migrate creates or updates every table on db.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&RefreshToken{},
		&Complaint{},
		&ComplaintMessage{},
		&LLMConfig{},
		&SystemLog{},
		&SchedulerLock{},
	)
}

func GetDB() *gorm.DB {
	return DB
}

// SeedDefaultData creates the configured admin account if no admin exists.
// Nothing is created when no admin password is configured.
func SeedDefaultData(db *gorm.DB, auth *config.AuthConfig) error {
	if auth == nil || auth.AdminEmail == "" || auth.AdminPassword == "" {
		return nil
	}

	var count int64
	if err := db.Model(&User{}).Where("role = ?", RoleAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	var existing User
	err := db.Where("email = ?", strings.ToLower(auth.AdminEmail)).First(&existing).Error
	if err == nil {
		return db.Model(&existing).Update("role", RoleAdmin).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, err := utils.HashPassword(auth.AdminPassword)
	if err != nil {
		return err
	}
	admin := User{
		Email:    strings.ToLower(auth.AdminEmail),
		Password: hash,
		Name:     "Administrator",
		Role:     RoleAdmin,
		AuthType: AuthTypeLocal,
		IsActive: true,
	}
	return db.Create(&admin).Error
}
