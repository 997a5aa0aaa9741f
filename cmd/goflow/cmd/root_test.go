package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/blingmoon/simple-goflow/workflow"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "goflow.yaml")
	content := "db:\n  dsn: " + filepath.Join(dir, "goflow.db") + "\nlog:\n  level: error\n"
	require.NoError(t, os.WriteFile(cfgFile, []byte(content), 0o600))
	return cfgFile
}

func runCLI(cfgFile string, args ...string) error {
	rootCmd.SetArgs(append([]string{"--config", cfgFile}, args...))
	return rootCmd.Execute()
}

func TestCLIStartFlow(t *testing.T) {
	cfgFile := writeTestConfig(t)

	steps := [][]string{
		{"user", "add", "alice"},
		{"user", "add", "bob"},
		{"user", "grant", "alice", workflow.CapabilityInstantiate},
		{"group", "add", "leave"},
		{"group", "grant", "leave", workflow.ScopedPermissionInstantiate},
		{"group", "member", "leave", "alice"},
		{"group", "add", "managers"},
		{"group", "member", "managers", "bob"},
		{"process", "add", "leave", "--description", "leave request"},
		{"process", "list"},
		{"process", "show", "leave"},
		{"perm", "check", "leave", "alice"},
		{"start", "leave", "alice", "--item-type", "leave_request", "--item-id", "1"},
		{"workitem", "show", "1"},
	}
	for _, step := range steps {
		require.NoError(t, runCLI(cfgFile, step...), "step: %v", step)
	}

	err := runCLI(cfgFile, "perm", "check", "leave", "bob")
	assert.True(t, errors.Is(err, workflow.ErrPermissionDenied), "err: %v", err)

	err = runCLI(cfgFile, "start", "leave", "bob")
	assert.True(t, errors.Is(err, workflow.ErrPermissionDenied), "err: %v", err)

	require.NoError(t, runCLI(cfgFile, "process", "disable", "leave"))
	err = runCLI(cfgFile, "start", "leave", "alice")
	assert.True(t, errors.Is(err, workflow.ErrProcessDisabled), "err: %v", err)

	err = runCLI(cfgFile, "activity", "update", "abc")
	assert.True(t, errors.Is(err, workflow.ErrWorkflowParamInvalid), "err: %v", err)
}

func TestNewApplicationRedisUnavailable(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "goflow.yaml")
	content := "db:\n  dsn: " + filepath.Join(dir, "goflow.db") + "\nredis:\n  addr: 127.0.0.1:1\nlog:\n  level: error\n"
	require.NoError(t, os.WriteFile(cfgFile, []byte(content), 0o600))

	r, err := newApplication(cfgFile)
	require.Error(t, err)
	assert.Nil(t, r)
	assert.Contains(t, err.Error(), "connect redis failed")
}

func TestCloseResources(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "goflow.db")), &gorm.Config{})
	require.NoError(t, err)
	r := &application{
		logger: zap.NewNop(),
		db:     db,
		redis:  redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}),
	}
	require.NoError(t, r.closeResources())

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Error(t, sqlDB.PingContext(context.Background()))
	assert.True(t, errors.Is(r.redis.Close(), redis.ErrClosed))

	// 没打开的资源直接跳过
	assert.NoError(t, (&application{logger: zap.NewNop()}).closeResources())
}
