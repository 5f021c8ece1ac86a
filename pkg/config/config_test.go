package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, StorageDriverLocal, cfg.Storage.Driver)
	assert.Equal(t, int64(20*1024*1024), cfg.Storage.MaxFileSizeBytes)
	assert.Equal(t, time.Minute, cfg.Workflow.ReminderWindow)
	assert.Equal(t, 5*time.Minute, cfg.Workflow.DefaultWindow)
	assert.Equal(t, time.Minute, cfg.Workflow.SweepInterval)
	assert.Equal(t, DedupBackendPostgres, cfg.Workflow.DedupBackend)
	assert.True(t, cfg.Workflow.SweepersEnabled)
	assert.Equal(t, 10, cfg.Redis.PoolSize)
	assert.Equal(t, 3*time.Second, cfg.Redis.Timeout)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("WORKFLOW_ADMIN_EMAILS", " Admin@Example.com, ,ops@example.com ")
	t.Setenv("WORKFLOW_PUBLIC_BASE_URL", "https://firmas.example.com/")
	t.Setenv("WORKFLOW_REMINDER_DEDUP_WINDOW", "90s")
	t.Setenv("WORKFLOW_DEDUP_WINDOW", "not-a-duration")
	t.Setenv("WORKFLOW_DEDUP_BACKEND", "Redis")
	t.Setenv("STORAGE_DRIVER", "S3")
	t.Setenv("STORAGE_MAX_FILE_SIZE", "0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"admin@example.com", "ops@example.com"}, cfg.Workflow.AdminEmails)
	assert.Equal(t, "https://firmas.example.com", cfg.Workflow.PublicBaseURL)
	assert.Equal(t, 90*time.Second, cfg.Workflow.ReminderWindow)
	assert.Equal(t, 5*time.Minute, cfg.Workflow.DefaultWindow)
	assert.Equal(t, DedupBackendRedis, cfg.Workflow.DedupBackend)
	assert.Equal(t, StorageDriverS3, cfg.Storage.Driver)
	assert.Equal(t, int64(20*1024*1024), cfg.Storage.MaxFileSizeBytes)
}
