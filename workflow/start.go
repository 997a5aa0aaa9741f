package workflow

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type StartProcessReq struct {
	ProcessName string `json:"process_name" validate:"required"`
	Username    string `json:"username" validate:"required"`
	Item        Item   `json:"item"`
	Title       string `json:"title"` // 为空或者为 "instance" 时用 "<ProcessName> <Item>"
}

func instanceTitle(req *StartProcessReq) string {
	if req.Title == "" || req.Title == placeholderInstanceTitle {
		return fmt.Sprintf("%s %s", req.ProcessName, req.Item.String())
	}
	return req.Title
}

func (s *ProcessServiceImpl) Start(ctx context.Context, req *StartProcessReq) (*WorkItem, error) {
	if err := validatorUtil.Struct(req); err != nil {
		return nil, errors.Wrapf(ErrWorkflowParamInvalid, "Start failed, req: %v,err: %v", req, err)
	}
	var (
		workItem *WorkItem
		autoUser *UserPo
	)
	// 创建实例、工作项以及分发在同一个事务里面, 解析失败或者 push 失败什么都不会留下
	err := s.repo.Transaction(ctx, func(ctx context.Context) error {
		processPos, err := s.repo.QueryProcess(ctx, &QueryProcessParams{
			Title:   &req.ProcessName,
			Enabled: Bool(true),
			Page:    firstPage(1),
		})
		if err != nil {
			return errors.WithMessagef(err, "QueryProcess failed, process: %s", req.ProcessName)
		}
		if len(processPos) == 0 {
			return errors.WithMessagef(ErrProcessNotFoundOrDisabled, "process: %s", req.ProcessName)
		}
		processPo := processPos[0]
		user, err := s.directory.GetUserByUsername(ctx, req.Username)
		if err != nil {
			return errors.WithMessagef(err, "resolve triggering user failed, process: %s", req.ProcessName)
		}
		begin, err := s.getActivity(ctx, processPo.BeginID)
		if err != nil {
			return errors.WithMessagef(err, "resolve begin activity failed, process: %s", req.ProcessName)
		}

		instancePo, err := s.repo.CreateProcessInstance(ctx, &ProcessInstancePo{
			ProcessID: processPo.ID,
			Title:     instanceTitle(req),
			ItemType:  req.Item.Type,
			ItemID:    req.Item.ID,
			ItemLabel: req.Item.Label,
			Username:  user.Username,
			Status:    ProcessInstanceStatusRunning,
		})
		if err != nil {
			return errors.WithMessagef(err, "CreateProcessInstance failed, process: %s", req.ProcessName)
		}
		workItemPo, err := s.repo.CreateWorkItem(ctx, &WorkItemPo{
			InstanceID: instancePo.ID,
			ActivityID: begin.ID,
			Username:   user.Username,
			Status:     WorkItemStatusInactive,
			PullRoles:  encodeStringList(nil),
		})
		if err != nil {
			return errors.WithMessagef(err, "CreateWorkItem failed, process: %s", req.ProcessName)
		}
		workItem = newWorkItemFromPo(workItemPo, newProcessInstanceFromPo(instancePo), begin)
		if err := s.event(ctx, workItem, "created by "+user.Username); err != nil {
			return err
		}
		s.logger.Info("process started",
			zap.String("process", req.ProcessName),
			zap.String("user", user.Username),
			zap.Stringer("item", req.Item),
			zap.Int64("instance_id", instancePo.ID),
			zap.Int64("work_item_id", workItem.ID),
			zap.String("mode", begin.DispatchMode()))

		switch begin.DispatchMode() {
		case DispatchModeAutostart:
			autoUser, err = s.directory.GetUserByUsername(ctx, s.settings.AutoUsername)
			if err != nil {
				return errors.WithMessagef(err, "resolve automation user failed, username: %s", s.settings.AutoUsername)
			}
			s.logger.Debug("run auto activity", zap.String("activity", begin.Title), zap.Int64("work_item_id", workItem.ID))
			return s.activate(ctx, workItem, autoUser.Username)
		case DispatchModePush:
			return s.push(ctx, workItem)
		default:
			return s.setPullRoles(ctx, workItem, begin.Roles)
		}
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "Start failed, process: %s", req.ProcessName)
	}
	s.metrics.ProcessStarted.WithLabelValues(req.ProcessName, workItem.Activity.DispatchMode()).Inc()

	if autoUser == nil {
		return workItem, nil
	}
	completed, reason := s.runActivityApp(ctx, workItem)
	if !completed {
		s.metrics.AutostartIncomplete.WithLabelValues(req.ProcessName, reason).Inc()
		return workItem, nil
	}
	current, err := s.completeAutostart(ctx, workItem, autoUser.Username)
	if err != nil {
		// 实例和工作项已经提交了, 完成失败和应用没有完成一样处理
		s.logger.Warn("complete autostart work item failed", zap.Int64("work_item_id", workItem.ID), zap.Error(err))
		s.metrics.AutostartIncomplete.WithLabelValues(req.ProcessName, "complete_failed").Inc()
		return current, nil
	}
	s.metrics.AutostartCompleted.WithLabelValues(req.ProcessName).Inc()
	return current, nil
}

// completeAutostart 应用执行期间没有持锁, 工作项可能已经被改过, 加锁之后重新加载再完成
// 失败的时候返回能拿到的最新工作项
func (s *ProcessServiceImpl) completeAutostart(ctx context.Context, workItem *WorkItem, username string) (*WorkItem, error) {
	current := workItem
	err := s.lock.NonBlockingSynchronized(ctx, workItemOpLockKey(workItem.ID), s.settings.LockTimeout,
		func(ctx context.Context) error {
			loaded, err := s.loadWorkItem(ctx, workItem.ID)
			if err != nil {
				return err
			}
			current = loaded
			next := *loaded
			err = s.repo.Transaction(ctx, func(ctx context.Context) error {
				return s.complete(ctx, &next, username)
			})
			if err != nil {
				return err
			}
			current = &next
			return nil
		})
	if err != nil {
		return current, errors.WithMessagef(err, "complete autostart work item failed, workItemID: %d", workItem.ID)
	}
	return current, nil
}

type appResult struct {
	completed bool
	err       error
}

// runActivityApp 执行 autostart 活动的应用, 返回是否完成以及没有完成的原因
// 应用报错、超时、panic、没有注册都不是致命错误, 工作项保持 active
func (s *ProcessServiceImpl) runActivityApp(ctx context.Context, workItem *WorkItem) (bool, string) {
	activity := workItem.Activity
	logger := s.logger.With(zap.Int64("work_item_id", workItem.ID), zap.String("activity", activity.Title))
	if activity.ApplicationURL == "" {
		if activity.Kind == ActivityKindDummy {
			// dummy 活动没有应用, 直接完成
			return true, ""
		}
		logger.Warn("autostart activity has no application")
		return false, "no_application"
	}
	app, err := getApplication(activity.ApplicationURL)
	if err != nil {
		logger.Warn("autostart application not registered", zap.Error(err))
		return false, "not_registered"
	}

	ctx, cancel := context.WithTimeout(ctx, s.settings.ApplicationTimeout)
	defer cancel()
	// 应用拿到的是副本, 超时之后应用还在跑也不会影响返回的工作项
	snapshot := *workItem
	ch := make(chan appResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- appResult{err: errors.Errorf("application panic: %v, stack: %s", r, string(debug.Stack()))}
			}
		}()
		completed, err := app.Run(ctx, &snapshot, activity.AppParams)
		ch <- appResult{completed: completed, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			logger.Warn("autostart application failed", zap.String("url", activity.ApplicationURL), zap.Error(r.err))
			return false, "error"
		}
		if !r.completed {
			logger.Debug("autostart application not completed", zap.String("url", activity.ApplicationURL))
			return false, "not_completed"
		}
		logger.Debug("workitem.run_activity_app completed", zap.String("url", activity.ApplicationURL))
		return true, ""
	case <-ctx.Done():
		logger.Warn("autostart application timeout",
			zap.String("url", activity.ApplicationURL), zap.Duration("timeout", s.settings.ApplicationTimeout))
		return false, "timeout"
	}
}

// push 执行 push 应用, 把工作项分配给目标用户
func (s *ProcessServiceImpl) push(ctx context.Context, workItem *WorkItem) error {
	activity := workItem.Activity
	app, err := getPushApplication(activity.PushApplicationURL)
	if err != nil {
		return err
	}
	pushCtx, cancel := context.WithTimeout(ctx, s.settings.ApplicationTimeout)
	defer cancel()
	snapshot := *workItem
	target, err := app.Push(pushCtx, &snapshot, activity.PushAppParams)
	if err != nil {
		return errors.WithMessagef(err, "push application failed, url: %s, workItemID: %d", activity.PushApplicationURL, workItem.ID)
	}
	targetUser, err := s.directory.GetUserByUsername(ctx, target)
	if err != nil {
		return errors.WithMessagef(err, "resolve push target failed, url: %s", activity.PushApplicationURL)
	}
	s.logger.Debug("application pushed to user", zap.String("user", targetUser.Username), zap.Int64("work_item_id", workItem.ID))
	return s.assign(ctx, workItem, targetUser.Username)
}
