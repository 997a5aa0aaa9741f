package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartAutostart(t *testing.T) {
	ctx := context.Background()

	t.Run("应用完成, 工作项完成", func(t *testing.T) {
		env := setupTestEnv(t)
		env.addUser(t, "alice")
		env.addUser(t, "workflow")
		var gotParams string
		var gotTitle string
		url := env.registerApplication(t, func(ctx context.Context, workItem *WorkItem, params *JSONParams) (bool, error) {
			gotParams, _ = params.GetString("mode")
			gotTitle = workItem.Instance.Title
			return true, nil
		})
		process := env.addProcess(t, "leave")
		env.updateBegin(t, process, &UpdateActivityField{
			Autostart:      Bool(true),
			ApplicationURL: String(url),
			AppParam:       String(`{"mode":"fast"}`),
		})

		workItem, err := env.service.Start(ctx, &StartProcessReq{
			ProcessName: "leave",
			Username:    "alice",
			Item:        Item{Type: "leave_request", ID: "42"},
		})
		require.NoError(t, err)
		assert.Equal(t, WorkItemStatusComplete, workItem.Status)
		assert.Equal(t, ProcessInstanceStatusRunning, workItem.Instance.Status)
		assert.Equal(t, "fast", gotParams)
		assert.Equal(t, "leave leave_request#42", gotTitle)
		assert.Equal(t, []string{"created by alice", "activated by workflow", "completed by workflow"},
			env.eventMessages(t, workItem.ID))

		stored, err := env.service.GetWorkItem(ctx, workItem.ID)
		require.NoError(t, err)
		assert.Equal(t, WorkItemStatusComplete, stored.Status)
		assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.AutostartCompleted.WithLabelValues("leave")))
		assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.ProcessStarted.WithLabelValues("leave", DispatchModeAutostart)))
	})

	incompleteCases := []struct {
		name   string
		app    ApplicationFunc
		reason string
	}{
		{
			name: "应用没有完成",
			app: func(ctx context.Context, workItem *WorkItem, params *JSONParams) (bool, error) {
				return false, nil
			},
			reason: "not_completed",
		},
		{
			name: "应用报错",
			app: func(ctx context.Context, workItem *WorkItem, params *JSONParams) (bool, error) {
				return true, errors.New("mail server down")
			},
			reason: "error",
		},
		{
			name: "应用panic",
			app: func(ctx context.Context, workItem *WorkItem, params *JSONParams) (bool, error) {
				panic("boom")
			},
			reason: "error",
		},
		{
			name: "应用超时",
			app: func(ctx context.Context, workItem *WorkItem, params *JSONParams) (bool, error) {
				<-ctx.Done()
				time.Sleep(10 * time.Millisecond)
				return true, nil
			},
			reason: "timeout",
		},
	}
	for _, tc := range incompleteCases {
		t.Run(tc.name, func(t *testing.T) {
			env := setupTestEnv(t, WithSettings(&Settings{ApplicationTimeout: 50 * time.Millisecond}))
			env.addUser(t, "alice")
			env.addUser(t, "workflow")
			url := env.registerApplication(t, tc.app)
			process := env.addProcess(t, "leave")
			env.updateBegin(t, process, &UpdateActivityField{Autostart: Bool(true), ApplicationURL: String(url)})

			workItem, err := env.service.Start(ctx, &StartProcessReq{ProcessName: "leave", Username: "alice"})
			require.NoError(t, err)
			assert.Equal(t, WorkItemStatusActive, workItem.Status)
			assert.Equal(t, []string{"created by alice", "activated by workflow"}, env.eventMessages(t, workItem.ID))
			assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.AutostartIncomplete.WithLabelValues("leave", tc.reason)))
			assert.Equal(t, 0.0, testutil.ToFloat64(env.metrics.AutostartCompleted.WithLabelValues("leave")))
		})
	}

	t.Run("dummy活动没有应用直接完成", func(t *testing.T) {
		env := setupTestEnv(t)
		env.addUser(t, "alice")
		env.addUser(t, "workflow")
		process := env.addProcess(t, "noop")
		env.updateBegin(t, process, &UpdateActivityField{Autostart: Bool(true), Kind: String(ActivityKindDummy)})

		workItem, err := env.service.Start(ctx, &StartProcessReq{ProcessName: "noop", Username: "alice"})
		require.NoError(t, err)
		assert.Equal(t, WorkItemStatusComplete, workItem.Status)
	})

	t.Run("应用没有注册", func(t *testing.T) {
		env := setupTestEnv(t)
		env.addUser(t, "alice")
		env.addUser(t, "workflow")
		// 只持久化不注册运行时实现
		require.NoError(t, env.service.AddApplication(ctx, &AddApplicationReq{
			URL: "test.app.unregistered", Kind: ApplicationKindApplication,
		}))
		process := env.addProcess(t, "leave")
		env.updateBegin(t, process, &UpdateActivityField{
			Autostart: Bool(true), ApplicationURL: String("test.app.unregistered"),
		})

		workItem, err := env.service.Start(ctx, &StartProcessReq{ProcessName: "leave", Username: "alice"})
		require.NoError(t, err)
		assert.Equal(t, WorkItemStatusActive, workItem.Status)
		assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.AutostartIncomplete.WithLabelValues("leave", "not_registered")))
	})

	t.Run("系统用户不存在, 什么都不创建", func(t *testing.T) {
		env := setupTestEnv(t)
		env.addUser(t, "alice")
		process := env.addProcess(t, "leave")
		env.updateBegin(t, process, &UpdateActivityField{Autostart: Bool(true), Kind: String(ActivityKindDummy)})

		_, err := env.service.Start(ctx, &StartProcessReq{ProcessName: "leave", Username: "alice"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUserNotFound))
		assert.Equal(t, int64(0), env.count(t, &ProcessInstancePo{}))
		assert.Equal(t, int64(0), env.count(t, &WorkItemPo{}))
		assert.Equal(t, int64(0), env.count(t, &EventPo{}))
	})

	t.Run("自定义系统用户", func(t *testing.T) {
		env := setupTestEnv(t, WithSettings(&Settings{AutoUsername: "robot"}))
		env.addUser(t, "alice")
		env.addUser(t, "robot")
		process := env.addProcess(t, "leave")
		env.updateBegin(t, process, &UpdateActivityField{Autostart: Bool(true), Kind: String(ActivityKindDummy)})

		workItem, err := env.service.Start(ctx, &StartProcessReq{ProcessName: "leave", Username: "alice"})
		require.NoError(t, err)
		assert.Equal(t, []string{"created by alice", "activated by robot", "completed by robot"},
			env.eventMessages(t, workItem.ID))
	})
}

func TestStartAutostartCompletion(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T, app ApplicationFunc) *testEnv {
		env := setupTestEnv(t)
		env.addUser(t, "alice")
		env.addUser(t, "workflow")
		url := env.registerApplication(t, app)
		process := env.addProcess(t, "leave")
		env.updateBegin(t, process, &UpdateActivityField{Autostart: Bool(true), ApplicationURL: String(url)})
		return env
	}

	t.Run("应用执行期间工作项被手动完成", func(t *testing.T) {
		var env *testEnv
		var manualErr error
		env = setup(t, func(ctx context.Context, workItem *WorkItem, params *JSONParams) (bool, error) {
			_, manualErr = env.service.CompleteWorkItem(context.Background(), workItem.ID, "alice")
			return true, nil
		})

		workItem, err := env.service.Start(ctx, &StartProcessReq{ProcessName: "leave", Username: "alice"})
		require.NoError(t, err)
		require.NoError(t, manualErr)
		require.NotNil(t, workItem)
		assert.Equal(t, WorkItemStatusComplete, workItem.Status)
		assert.Equal(t, []string{"created by alice", "activated by workflow", "completed by alice"},
			env.eventMessages(t, workItem.ID))
		assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.WorkItemTransitions.WithLabelValues(WorkItemStatusComplete)))
		assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.AutostartIncomplete.WithLabelValues("leave", "complete_failed")))
		assert.Equal(t, 0.0, testutil.ToFloat64(env.metrics.AutostartCompleted.WithLabelValues("leave")))
	})

	t.Run("完成时拿不到锁, 返回active的工作项", func(t *testing.T) {
		var env *testEnv
		release := make(chan struct{})
		done := make(chan error, 1)
		env = setup(t, func(ctx context.Context, workItem *WorkItem, params *JSONParams) (bool, error) {
			held := make(chan struct{})
			go func() {
				done <- env.service.lock.NonBlockingSynchronized(context.Background(), workItemOpLockKey(workItem.ID), time.Minute,
					func(ctx context.Context) error {
						close(held)
						<-release
						return nil
					})
			}()
			<-held
			return true, nil
		})

		workItem, err := env.service.Start(ctx, &StartProcessReq{ProcessName: "leave", Username: "alice"})
		close(release)
		require.NoError(t, <-done)
		require.NoError(t, err)
		require.NotNil(t, workItem)
		assert.Equal(t, WorkItemStatusActive, workItem.Status)
		assert.Equal(t, []string{"created by alice", "activated by workflow"}, env.eventMessages(t, workItem.ID))
		assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.AutostartIncomplete.WithLabelValues("leave", "complete_failed")))

		stored, err := env.service.GetWorkItem(ctx, workItem.ID)
		require.NoError(t, err)
		assert.Equal(t, WorkItemStatusActive, stored.Status)
	})
}

func TestStartPush(t *testing.T) {
	ctx := context.Background()

	t.Run("推给应用返回的用户", func(t *testing.T) {
		env := setupTestEnv(t)
		env.addUser(t, "alice")
		env.addUser(t, "bob")
		url := env.registerPushApplication(t, func(ctx context.Context, workItem *WorkItem, params *JSONParams) (string, error) {
			return "bob", nil
		})
		process := env.addProcess(t, "leave")
		env.updateBegin(t, process, &UpdateActivityField{PushApplicationURL: String(url)})

		workItem, err := env.service.Start(ctx, &StartProcessReq{ProcessName: "leave", Username: "alice"})
		require.NoError(t, err)
		assert.Equal(t, "bob", workItem.Username)
		assert.Equal(t, WorkItemStatusInactive, workItem.Status)
		assert.Empty(t, workItem.PullRoles)
		assert.Equal(t, []string{"created by alice", "assigned to bob"}, env.eventMessages(t, workItem.ID))

		stored, err := env.service.GetWorkItem(ctx, workItem.ID)
		require.NoError(t, err)
		assert.Equal(t, "bob", stored.Username)
		assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.ProcessStarted.WithLabelValues("leave", DispatchModePush)))
	})

	t.Run("内置应用推给指定用户", func(t *testing.T) {
		env := setupTestEnv(t)
		env.addUser(t, "alice")
		env.addUser(t, "carol")
		require.NoError(t, env.service.AddApplication(ctx, &AddApplicationReq{URL: PushToUser, Kind: ApplicationKindPush}))
		process := env.addProcess(t, "leave")
		env.updateBegin(t, process, &UpdateActivityField{
			PushApplicationURL: String(PushToUser),
			PushAppParam:       String(`{"username":"carol"}`),
		})

		workItem, err := env.service.Start(ctx, &StartProcessReq{ProcessName: "leave", Username: "alice"})
		require.NoError(t, err)
		assert.Equal(t, "carol", workItem.Username)
	})

	t.Run("内置应用推回发起人", func(t *testing.T) {
		env := setupTestEnv(t)
		env.addUser(t, "alice")
		require.NoError(t, env.service.AddApplication(ctx, &AddApplicationReq{URL: PushToRequester, Kind: ApplicationKindPush}))
		process := env.addProcess(t, "leave")
		env.updateBegin(t, process, &UpdateActivityField{PushApplicationURL: String(PushToRequester)})

		workItem, err := env.service.Start(ctx, &StartProcessReq{ProcessName: "leave", Username: "alice"})
		require.NoError(t, err)
		assert.Equal(t, "alice", workItem.Username)
	})

	t.Run("目标用户不存在, 整个启动回滚", func(t *testing.T) {
		env := setupTestEnv(t)
		env.addUser(t, "alice")
		url := env.registerPushApplication(t, func(ctx context.Context, workItem *WorkItem, params *JSONParams) (string, error) {
			return "ghost", nil
		})
		process := env.addProcess(t, "leave")
		env.updateBegin(t, process, &UpdateActivityField{PushApplicationURL: String(url)})

		_, err := env.service.Start(ctx, &StartProcessReq{ProcessName: "leave", Username: "alice"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUserNotFound))
		assert.Equal(t, int64(0), env.count(t, &ProcessInstancePo{}))
		assert.Equal(t, int64(0), env.count(t, &WorkItemPo{}))
	})

	t.Run("推送应用报错, 整个启动回滚", func(t *testing.T) {
		env := setupTestEnv(t)
		env.addUser(t, "alice")
		url := env.registerPushApplication(t, func(ctx context.Context, workItem *WorkItem, params *JSONParams) (string, error) {
			return "", errors.New("directory unavailable")
		})
		process := env.addProcess(t, "leave")
		env.updateBegin(t, process, &UpdateActivityField{PushApplicationURL: String(url)})

		_, err := env.service.Start(ctx, &StartProcessReq{ProcessName: "leave", Username: "alice"})
		require.Error(t, err)
		assert.Equal(t, int64(0), env.count(t, &ProcessInstancePo{}))
		assert.Equal(t, int64(0), env.count(t, &EventPo{}))
	})

	t.Run("autostart优先于push", func(t *testing.T) {
		env := setupTestEnv(t)
		env.addUser(t, "alice")
		env.addUser(t, "workflow")
		pushed := false
		url := env.registerPushApplication(t, func(ctx context.Context, workItem *WorkItem, params *JSONParams) (string, error) {
			pushed = true
			return "alice", nil
		})
		process := env.addProcess(t, "leave")
		env.updateBegin(t, process, &UpdateActivityField{
			Autostart:          Bool(true),
			Kind:               String(ActivityKindDummy),
			PushApplicationURL: String(url),
		})

		workItem, err := env.service.Start(ctx, &StartProcessReq{ProcessName: "leave", Username: "alice"})
		require.NoError(t, err)
		assert.False(t, pushed)
		assert.Equal(t, WorkItemStatusComplete, workItem.Status)
	})
}

func TestStartPull(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	env.addUser(t, "alice")
	env.addGroup(t, "managers")
	env.addGroup(t, "hr")
	process := env.addProcess(t, "leave")
	env.updateBegin(t, process, &UpdateActivityField{Roles: []string{"managers", "hr"}})

	workItem, err := env.service.Start(ctx, &StartProcessReq{ProcessName: "leave", Username: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "alice", workItem.Username)
	assert.Equal(t, WorkItemStatusInactive, workItem.Status)
	assert.Equal(t, []string{"managers", "hr"}, workItem.PullRoles)
	assert.Equal(t, []string{"created by alice"}, env.eventMessages(t, workItem.ID))

	stored, err := env.service.GetWorkItem(ctx, workItem.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"managers", "hr"}, stored.PullRoles)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.ProcessStarted.WithLabelValues("leave", DispatchModePull)))

	t.Run("没有角色的时候pull roles为空", func(t *testing.T) {
		env.addProcess(t, "expense")
		workItem, err := env.service.Start(ctx, &StartProcessReq{ProcessName: "expense", Username: "alice"})
		require.NoError(t, err)
		assert.NotNil(t, workItem.PullRoles)
		assert.Empty(t, workItem.PullRoles)
	})
}

func TestStartRejected(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	env.addUser(t, "alice")
	env.addProcess(t, "leave")
	require.NoError(t, env.service.SetProcessEnabled(ctx, "leave", false))

	cases := []struct {
		name string
		req  *StartProcessReq
		want error
	}{
		{name: "流程禁用", req: &StartProcessReq{ProcessName: "leave", Username: "alice"}, want: ErrProcessNotFoundOrDisabled},
		{name: "流程不存在", req: &StartProcessReq{ProcessName: "missing", Username: "alice"}, want: ErrProcessNotFoundOrDisabled},
		{name: "缺少流程名", req: &StartProcessReq{Username: "alice"}, want: ErrWorkflowParamInvalid},
		{name: "缺少用户", req: &StartProcessReq{ProcessName: "leave"}, want: ErrWorkflowParamInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			workItem, err := env.service.Start(ctx, tc.req)
			require.Error(t, err)
			assert.Nil(t, workItem)
			assert.True(t, errors.Is(err, tc.want), "err: %v", err)
		})
	}

	t.Run("用户不存在", func(t *testing.T) {
		require.NoError(t, env.service.SetProcessEnabled(ctx, "leave", true))
		_, err := env.service.Start(ctx, &StartProcessReq{ProcessName: "leave", Username: "nobody"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUserNotFound))
	})

	assert.Equal(t, int64(0), env.count(t, &ProcessInstancePo{}))
	assert.Equal(t, int64(0), env.count(t, &WorkItemPo{}))
}

func TestStartInstanceTitle(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	env.addUser(t, "alice")
	env.addProcess(t, "leave")

	cases := []struct {
		name  string
		title string
		item  Item
		want  string
	}{
		{name: "没有标题", item: Item{Type: "leave_request", ID: "7"}, want: "leave leave_request#7"},
		{name: "占位标题", title: "instance", item: Item{Label: "Alice vacation"}, want: "leave Alice vacation"},
		{name: "自定义标题", title: "summer leave", item: Item{ID: "7"}, want: "summer leave"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			workItem, err := env.service.Start(ctx, &StartProcessReq{
				ProcessName: "leave",
				Username:    "alice",
				Item:        tc.item,
				Title:       tc.title,
			})
			require.NoError(t, err)
			assert.Equal(t, tc.want, workItem.Instance.Title)
			assert.Equal(t, tc.item, workItem.Instance.Item)
		})
	}
}
