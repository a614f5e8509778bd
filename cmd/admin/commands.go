package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dhrustimirsdar/customerreviewpost/internal/config"
	"github.com/dhrustimirsdar/customerreviewpost/internal/models"
	"github.com/dhrustimirsdar/customerreviewpost/internal/services"
	"github.com/dhrustimirsdar/customerreviewpost/internal/utils"
	"github.com/dhrustimirsdar/customerreviewpost/pkg/logger"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	forceInit     bool
	adminEmail    string
	adminPassword string
	adminName     string
	cleanupDays   int
)

func init() {
	initConfigCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "overwrite an existing config file")

	createAdminCmd.Flags().StringVar(&adminEmail, "email", "", "admin email (required)")
	createAdminCmd.Flags().StringVar(&adminPassword, "password", "", "admin password (required, min 6 characters)")
	createAdminCmd.Flags().StringVar(&adminName, "name", "Administrator", "display name")
	_ = createAdminCmd.MarkFlagRequired("email")
	_ = createAdminCmd.MarkFlagRequired("password")

	cleanupLogsCmd.Flags().IntVar(&cleanupDays, "days", 0, "retention in days (default log.retention_days)")
}

var initConfigCmd = &cobra.Command{
	Use:   "init-config",
	Short: "Write a config file with default settings",
	Long: `Write a config file populated with the built-in defaults.

Examples:
  # Create ./config.yaml
  complaints-admin init-config

  # Overwrite a config somewhere else
  complaints-admin init-config -c /etc/complaints/config.yaml --force`,
	Args: cobra.NoArgs,
	RunE: runInitConfig,
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an admin account or promote an existing one",
	Args:  cobra.NoArgs,
	RunE:  runCreateAdmin,
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <complaint-id>...",
	Short: "Mark complaints as Resolved",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runResolve,
}

var cleanupLogsCmd = &cobra.Command{
	Use:   "cleanup-logs",
	Short: "Delete system log entries older than the retention period",
	Args:  cobra.NoArgs,
	RunE:  runCleanupLogs,
}

func resolvedConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config.yaml"
}

func openDB() (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(resolvedConfigPath())
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Log.Level)

	db, err := models.Open(&cfg.Database, gormlogger.Warn)
	if err != nil {
		return nil, nil, err
	}
	if err := models.Migrate(db); err != nil {
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return cfg, db, nil
}

func runInitConfig(cmd *cobra.Command, args []string) error {
	path := resolvedConfigPath()
	if _, err := os.Stat(path); err == nil && !forceInit {
		return fmt.Errorf("%s already exists, use --force to overwrite", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	cmd.Printf("Wrote default config to %s\n", path)
	return nil
}

// upsertAdmin creates a local admin account, or gives an existing account
// with that email the admin role and the new password.
func upsertAdmin(db *gorm.DB, email, password, name string) (*models.User, bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, false, fmt.Errorf("invalid email %q", email)
	}
	if len(password) < 6 {
		return nil, false, errors.New("password must be at least 6 characters")
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, false, err
	}

	var user models.User
	err = db.Where("email = ?", email).First(&user).Error
	if err == nil {
		updates := map[string]interface{}{"role": models.RoleAdmin, "is_active": true}
		if user.AuthType == models.AuthTypeLocal {
			updates["password"] = hash
		}
		if err := db.Model(&user).Updates(updates).Error; err != nil {
			return nil, false, err
		}
		return &user, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	user = models.User{
		Email:    email,
		Password: hash,
		Name:     name,
		Role:     models.RoleAdmin,
		AuthType: models.AuthTypeLocal,
		IsActive: true,
	}
	if err := db.Create(&user).Error; err != nil {
		return nil, false, err
	}
	return &user, true, nil
}

func runCreateAdmin(cmd *cobra.Command, args []string) error {
	_, db, err := openDB()
	if err != nil {
		return err
	}

	user, created, err := upsertAdmin(db, adminEmail, adminPassword, adminName)
	if err != nil {
		return err
	}
	if created {
		cmd.Printf("Created admin %s (id %d)\n", user.Email, user.ID)
	} else {
		cmd.Printf("Promoted %s (id %d) to admin\n", user.Email, user.ID)
	}
	return nil
}

func runResolve(cmd *cobra.Command, args []string) error {
	_, db, err := openDB()
	if err != nil {
		return err
	}

	svc := services.NewComplaintService(db, nil, nil, nil, nil, nil, services.NewSystemLogService(db))
	caller := &services.Caller{Email: "complaints-admin", Role: models.RoleAdmin}
	status := models.StatusResolved

	var failed int
	for _, id := range args {
		c, err := svc.Update(context.Background(), caller, &services.UpdateComplaintRequest{ID: id, Status: &status},
			services.RequestMeta{UserAgent: "complaints-admin"})
		if err != nil {
			failed++
			cmd.PrintErrf("%s: %v\n", id, err)
			continue
		}
		cmd.Printf("%s: %s\n", c.ID, c.Status)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d complaints not resolved", failed, len(args))
	}
	return nil
}

func runCleanupLogs(cmd *cobra.Command, args []string) error {
	cfg, db, err := openDB()
	if err != nil {
		return err
	}

	days := cfg.Log.RetentionDays
	if cleanupDays > 0 {
		days = cleanupDays
	}

	deleted, err := services.NewSystemLogService(db).CleanupOldLogs(days)
	if err != nil {
		return err
	}
	cmd.Printf("Deleted %d log entries older than %d days\n", deleted, days)
	return nil
}
