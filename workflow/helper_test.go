package workflow

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	db        *gorm.DB
	repo      ProcessRepo
	directory DirectoryRepo
	service   *ProcessServiceImpl
	metrics   *Metrics
}

func setupTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// 内存库每个连接都是一个新库
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(AllModels()...))

	metrics := NewMetrics(prometheus.NewRegistry())
	repo := NewProcessRepo(db)
	directory := NewDirectoryRepo(db)
	opts = append([]Option{WithMetrics(metrics)}, opts...)
	service := NewProcessService(repo, directory, NewAuthorizationPolicy(db), NewLocalWorkItemLock(), opts...)
	return &testEnv{
		db:        db,
		repo:      repo,
		directory: directory,
		service:   service.(*ProcessServiceImpl),
		metrics:   metrics,
	}
}

func (e *testEnv) addUser(t *testing.T, username string) *UserPo {
	t.Helper()
	user, err := e.directory.CreateUser(context.Background(), &UserPo{Username: username})
	require.NoError(t, err)
	return user
}

func (e *testEnv) addGroup(t *testing.T, name string, members ...*UserPo) *GroupPo {
	t.Helper()
	ctx := context.Background()
	group, err := e.directory.CreateGroup(ctx, &GroupPo{Name: name})
	require.NoError(t, err)
	for _, member := range members {
		require.NoError(t, e.directory.AddUserToGroup(ctx, member.ID, group.ID))
	}
	return group
}

func (e *testEnv) addProcess(t *testing.T, title string) *Process {
	t.Helper()
	process, err := e.service.AddProcess(context.Background(), &AddProcessReq{Title: title})
	require.NoError(t, err)
	return process
}

// registerApplication 注册一个唯一 url 的应用并持久化
func (e *testEnv) registerApplication(t *testing.T, f ApplicationFunc) string {
	t.Helper()
	url := "test.app." + uuid.NewString()
	require.NoError(t, RegisterApplication(url, f))
	require.NoError(t, e.service.AddApplication(context.Background(), &AddApplicationReq{
		URL: url, Kind: ApplicationKindApplication, Test: true,
	}))
	return url
}

func (e *testEnv) registerPushApplication(t *testing.T, f PushApplicationFunc) string {
	t.Helper()
	url := "test.pushapp." + uuid.NewString()
	require.NoError(t, RegisterPushApplication(url, f))
	require.NoError(t, e.service.AddApplication(context.Background(), &AddApplicationReq{
		URL: url, Kind: ApplicationKindPush, Test: true,
	}))
	return url
}

func (e *testEnv) updateBegin(t *testing.T, process *Process, fields *UpdateActivityField) *Activity {
	t.Helper()
	activity, err := e.service.UpdateActivity(context.Background(), &UpdateActivityReq{
		ActivityID: process.Begin.ID,
		Fields:     fields,
	})
	require.NoError(t, err)
	return activity
}

func (e *testEnv) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(model).Count(&n).Error)
	return n
}

func (e *testEnv) eventMessages(t *testing.T, workItemID int64) []string {
	t.Helper()
	events, err := e.service.ListWorkItemEvents(context.Background(), workItemID)
	require.NoError(t, err)
	messages := make([]string, 0, len(events))
	for _, event := range events {
		messages = append(messages, event.Message)
	}
	return messages
}
