package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/blingmoon/simple-goflow/workflow"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testServer struct {
	handler   http.Handler
	service   workflow.ProcessService
	directory workflow.DirectoryRepo
	logs      *observer.ObservedLogs
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(workflow.AllModels()...))

	registry := prometheus.NewRegistry()
	directory := workflow.NewDirectoryRepo(db)
	service := workflow.NewProcessService(
		workflow.NewProcessRepo(db),
		directory,
		workflow.NewAuthorizationPolicy(db),
		workflow.NewLocalWorkItemLock(),
		workflow.WithMetrics(workflow.NewMetrics(registry)),
	)
	core, logs := observer.New(zapcore.DebugLevel)
	server := NewServer(service, ":0", registry, zap.New(core))
	return &testServer{handler: server.Handler(), service: service, directory: directory, logs: logs}
}

func (s *testServer) do(t *testing.T, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

// seed leave 流程, alice 有启动权限, bob 在 managers 组里
func (s *testServer) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	alice, err := s.directory.CreateUser(ctx, &workflow.UserPo{Username: "alice"})
	require.NoError(t, err)
	bob, err := s.directory.CreateUser(ctx, &workflow.UserPo{Username: "bob"})
	require.NoError(t, err)
	_, err = s.directory.CreateUser(ctx, &workflow.UserPo{Username: "carol"})
	require.NoError(t, err)
	require.NoError(t, s.directory.GrantUserPermission(ctx, alice.ID, workflow.CapabilityInstantiate))
	leave, err := s.directory.CreateGroup(ctx, &workflow.GroupPo{Name: "leave"})
	require.NoError(t, err)
	require.NoError(t, s.directory.AddUserToGroup(ctx, alice.ID, leave.ID))
	require.NoError(t, s.directory.GrantGroupPermission(ctx, leave.ID, workflow.ScopedPermissionInstantiate))
	managers, err := s.directory.CreateGroup(ctx, &workflow.GroupPo{Name: "managers"})
	require.NoError(t, err)
	require.NoError(t, s.directory.AddUserToGroup(ctx, bob.ID, managers.ID))

	process, err := s.service.AddProcess(ctx, &workflow.AddProcessReq{Title: "leave"})
	require.NoError(t, err)
	_, err = s.service.UpdateActivity(ctx, &workflow.UpdateActivityReq{
		ActivityID: process.Begin.ID,
		Fields:     &workflow.UpdateActivityField{Roles: []string{"managers"}},
	})
	require.NoError(t, err)
}

func TestProcessEndpoints(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, http.MethodPost, "/processes", "", `{"title":"leave","description":"leave request"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/processes", "admin", `{"title":"leave","description":"leave request"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created ProcessView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "leave", created.Title)
	assert.True(t, created.Enabled)
	require.NotNil(t, created.Begin)
	assert.Equal(t, "initial", created.Begin.Title)

	rec = s.do(t, http.MethodPost, "/processes", "admin", `{"title":"leave"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/processes", "admin", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/processes", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var processes []ProcessView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &processes))
	assert.Len(t, processes, 1)

	rec = s.do(t, http.MethodGet, "/processes/leave", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodGet, "/processes/missing", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(t, http.MethodGet, "/processes?enabled=maybe", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartAndWorkItemEndpoints(t *testing.T) {
	s := setupTestServer(t)
	s.seed(t)

	rec := s.do(t, http.MethodPost, "/processes/leave/instances", "", `{}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/processes/leave/instances", "carol", `{}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/processes/missing/instances", "alice", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/processes/leave/instances", "alice", `{"item":{"type":"leave_request","id":"9"}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var workItem WorkItemView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &workItem))
	assert.Equal(t, "leave leave_request#9", workItem.InstanceTitle)
	assert.Equal(t, "initial", workItem.Activity)
	assert.Equal(t, []string{"managers"}, workItem.PullRoles)
	assert.Equal(t, workflow.WorkItemStatusInactive, workItem.Status)

	base := "/workitems/" + strconv.FormatInt(workItem.ID, 10)
	rec = s.do(t, http.MethodGet, base, "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, base+"/claim", "carol", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(t, http.MethodPost, base+"/claim", "bob", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = s.do(t, http.MethodPost, base+"/complete", "bob", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = s.do(t, http.MethodPost, base+"/activate", "bob", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = s.do(t, http.MethodPost, base+"/complete", "bob", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &workItem))
	assert.Equal(t, workflow.WorkItemStatusComplete, workItem.Status)

	rec = s.do(t, http.MethodGet, base+"/events", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var events []EventView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 4)
	assert.Equal(t, "created by alice", events[0].Message)
	assert.Equal(t, "completed by bob", events[3].Message)

	rec = s.do(t, http.MethodGet, "/workitems/abc", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodGet, "/workitems/999/events", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `goflow_process_started_total{mode="pull",process="leave"} 1`)
}

func TestStatusFromError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{err: errors.WithMessage(workflow.ErrProcessNotFoundOrDisabled, "x"), want: http.StatusNotFound},
		{err: errors.WithMessage(workflow.ErrUserNotFound, "x"), want: http.StatusNotFound},
		{err: &workflow.PermissionError{Reason: workflow.PermissionReasonMissingCapability}, want: http.StatusForbidden},
		{err: errors.WithMessage(&workflow.PermissionError{}, "wrapped"), want: http.StatusForbidden},
		{err: workflow.ErrProcessDisabled, want: http.StatusForbidden},
		{err: errors.WithMessage(workflow.ErrLockFailed, "x"), want: http.StatusConflict},
		{err: errors.Wrap(workflow.ErrWorkflowParamInvalid, "x"), want: http.StatusBadRequest},
		{err: errors.WithMessage(workflow.ErrPushApplicationNotFound, "x"), want: http.StatusInternalServerError},
		{err: errors.New("db down"), want: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		status, _ := StatusFromError(tc.err)
		assert.Equal(t, tc.want, status, "err: %v", tc.err)
		assert.Equal(t, tc.want < http.StatusInternalServerError, workflow.IsClientError(tc.err), "err: %v", tc.err)
	}
}

func TestErrorLogLevel(t *testing.T) {
	s := setupTestServer(t)
	s.seed(t)
	ctx := context.Background()

	// push 应用只持久化没有注册运行时实现, Start 会失败
	require.NoError(t, s.service.AddApplication(ctx, &workflow.AddApplicationReq{
		URL: "test.pushapp.unregistered", Kind: workflow.ApplicationKindPush,
	}))
	process, err := s.service.AddProcess(ctx, &workflow.AddProcessReq{Title: "broken"})
	require.NoError(t, err)
	_, err = s.service.UpdateActivity(ctx, &workflow.UpdateActivityReq{
		ActivityID: process.Begin.ID,
		Fields:     &workflow.UpdateActivityField{PushApplicationURL: workflow.String("test.pushapp.unregistered")},
	})
	require.NoError(t, err)

	rec := s.do(t, http.MethodGet, "/processes/missing", "", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	rejected := s.logs.FilterMessage("request rejected").All()
	require.Len(t, rejected, 1)
	assert.Equal(t, zapcore.DebugLevel, rejected[0].Level)
	assert.Empty(t, s.logs.FilterMessage("request failed").All())

	alice, err := s.directory.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	group, err := s.directory.CreateGroup(ctx, &workflow.GroupPo{Name: "broken"})
	require.NoError(t, err)
	require.NoError(t, s.directory.AddUserToGroup(ctx, alice.ID, group.ID))
	require.NoError(t, s.directory.GrantGroupPermission(ctx, group.ID, workflow.ScopedPermissionInstantiate))

	rec = s.do(t, http.MethodPost, "/processes/broken/instances", "alice", `{}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code, rec.Body.String())
	failed := s.logs.FilterMessage("request failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, zapcore.ErrorLevel, failed[0].Level)
}
