package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dhrustimirsdar/customerreviewpost/internal/config"
	"github.com/dhrustimirsdar/customerreviewpost/internal/models"
	"github.com/dhrustimirsdar/customerreviewpost/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := models.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "admin.db"),
	}, gormlogger.Silent)
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))
	return db
}

func TestUpsertAdmin_CreatesAdmin(t *testing.T) {
	db := testDB(t)

	user, created, err := upsertAdmin(db, " Ops@Example.com ", "secret1", "Ops")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "ops@example.com", user.Email)
	assert.Equal(t, models.RoleAdmin, user.Role)
	assert.True(t, utils.CheckPassword("secret1", user.Password))
}

func TestUpsertAdmin_PromotesExistingUser(t *testing.T) {
	db := testDB(t)
	hash, err := utils.HashPassword("oldpass")
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.User{
		Email: "jo@example.com", Password: hash, Role: models.RoleUser, AuthType: models.AuthTypeLocal, IsActive: true,
	}).Error)

	_, created, err := upsertAdmin(db, "jo@example.com", "newpass", "")
	require.NoError(t, err)
	assert.False(t, created)

	var stored models.User
	require.NoError(t, db.Where("email = ?", "jo@example.com").First(&stored).Error)
	assert.Equal(t, models.RoleAdmin, stored.Role)
	assert.True(t, utils.CheckPassword("newpass", stored.Password))

	var count int64
	db.Model(&models.User{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestUpsertAdmin_Validation(t *testing.T) {
	db := testDB(t)

	_, _, err := upsertAdmin(db, "not-an-email", "secret1", "")
	assert.Error(t, err)

	_, _, err = upsertAdmin(db, "a@example.com", "123", "")
	assert.Error(t, err)
}

func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")
	configPath = path
	forceInit = false
	t.Cleanup(func() { configPath = "" })

	var out bytes.Buffer
	initConfigCmd.SetOut(&out)

	require.NoError(t, runInitConfig(initConfigCmd, nil))
	assert.Contains(t, out.String(), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "driver: sqlite"))

	err = runInitConfig(initConfigCmd, nil)
	assert.ErrorContains(t, err, "already exists")

	forceInit = true
	t.Cleanup(func() { forceInit = false })
	assert.NoError(t, runInitConfig(initConfigCmd, nil))
}
