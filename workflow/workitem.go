package workflow

import (
	"context"
	"slices"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func (s *ProcessServiceImpl) GetWorkItem(ctx context.Context, workItemID int64) (*WorkItem, error) {
	if workItemID <= 0 {
		return nil, errors.Wrapf(ErrWorkflowParamInvalid, "GetWorkItem failed, workItemID: %d", workItemID)
	}
	return s.loadWorkItem(ctx, workItemID)
}

func (s *ProcessServiceImpl) ActivateWorkItem(ctx context.Context, workItemID int64, actor string) (*WorkItem, error) {
	return s.transition(ctx, workItemID, "ActivateWorkItem", func(ctx context.Context, workItem *WorkItem) error {
		if err := s.checkActor(ctx, workItem, actor); err != nil {
			return err
		}
		return s.activate(ctx, workItem, actor)
	})
}

func (s *ProcessServiceImpl) CompleteWorkItem(ctx context.Context, workItemID int64, actor string) (*WorkItem, error) {
	return s.transition(ctx, workItemID, "CompleteWorkItem", func(ctx context.Context, workItem *WorkItem) error {
		if err := s.checkActor(ctx, workItem, actor); err != nil {
			return err
		}
		return s.complete(ctx, workItem, actor)
	})
}

func (s *ProcessServiceImpl) ClaimWorkItem(ctx context.Context, workItemID int64, username string) (*WorkItem, error) {
	return s.transition(ctx, workItemID, "ClaimWorkItem", func(ctx context.Context, workItem *WorkItem) error {
		if workItem.Status != WorkItemStatusInactive {
			return errors.WithMessagef(ErrInvalidWorkItemStatus, "only inactive work item can be claimed, status: %s", workItem.Status)
		}
		user, err := s.directory.GetUserByUsername(ctx, username)
		if err != nil {
			return err
		}
		inRoles, err := s.inPullRoles(ctx, workItem, user.Username)
		if err != nil {
			return err
		}
		if !inRoles {
			return &PermissionError{Reason: PermissionReasonNotInPullRoles, Username: user.Username}
		}
		if err := s.assign(ctx, workItem, user.Username); err != nil {
			return err
		}
		// 已经有人认领了, pull roles 清空
		return s.setPullRoles(ctx, workItem, []string{})
	})
}

func (s *ProcessServiceImpl) ListWorkItemEvents(ctx context.Context, workItemID int64) ([]*Event, error) {
	eventPos, err := s.repo.QueryEvent(ctx, &QueryEventParams{WorkItemID: &workItemID, Page: noLimitPage()})
	if err != nil {
		return nil, errors.WithMessagef(err, "QueryEvent failed, workItemID: %d", workItemID)
	}
	events := make([]*Event, 0, len(eventPos))
	for _, eventPo := range eventPos {
		events = append(events, &Event{
			ID:         eventPo.ID,
			WorkItemID: eventPo.WorkItemID,
			Message:    eventPo.Message,
			CreatedAt:  eventPo.CreatedAt,
		})
	}
	return events, nil
}

// transition 加锁, 加载工作项, 在事务里执行状态变更
func (s *ProcessServiceImpl) transition(ctx context.Context, workItemID int64, op string, fn func(ctx context.Context, workItem *WorkItem) error) (*WorkItem, error) {
	if workItemID <= 0 {
		return nil, errors.Wrapf(ErrWorkflowParamInvalid, "%s failed, workItemID: %d", op, workItemID)
	}
	var workItem *WorkItem
	err := s.lock.NonBlockingSynchronized(ctx, workItemOpLockKey(workItemID), s.settings.LockTimeout,
		func(ctx context.Context) error {
			var err error
			workItem, err = s.loadWorkItem(ctx, workItemID)
			if err != nil {
				return err
			}
			return s.repo.Transaction(ctx, func(ctx context.Context) error {
				return fn(ctx, workItem)
			})
		})
	if err != nil {
		return nil, errors.WithMessagef(err, "%s failed, workItemID: %d", op, workItemID)
	}
	return workItem, nil
}

func (s *ProcessServiceImpl) loadWorkItem(ctx context.Context, workItemID int64) (*WorkItem, error) {
	workItemPos, err := s.repo.QueryWorkItem(ctx, &QueryWorkItemParams{WorkItemID: &workItemID, Page: firstPage(1)})
	if err != nil {
		return nil, errors.WithMessagef(err, "QueryWorkItem failed, workItemID: %d", workItemID)
	}
	if len(workItemPos) == 0 {
		return nil, errors.WithMessagef(ErrWorkItemNotFound, "workItemID: %d", workItemID)
	}
	workItemPo := workItemPos[0]
	instancePos, err := s.repo.QueryProcessInstance(ctx, &QueryProcessInstanceParams{InstanceID: &workItemPo.InstanceID, Page: firstPage(1)})
	if err != nil {
		return nil, errors.WithMessagef(err, "QueryProcessInstance failed, instanceID: %d", workItemPo.InstanceID)
	}
	if len(instancePos) == 0 {
		// 工作项一定有实例, 走到这里说明数据有问题
		return nil, errors.WithMessagef(ErrProcessInstanceNotFound, "instanceID: %d, workItemID: %d", workItemPo.InstanceID, workItemID)
	}
	activity, err := s.getActivity(ctx, workItemPo.ActivityID)
	if err != nil {
		return nil, errors.WithMessagef(err, "workItemID: %d", workItemID)
	}
	return newWorkItemFromPo(workItemPo, newProcessInstanceFromPo(instancePos[0]), activity), nil
}

// checkActor 工作项的用户或者 pull roles 里的成员才能操作
func (s *ProcessServiceImpl) checkActor(ctx context.Context, workItem *WorkItem, actor string) error {
	if actor == "" {
		return errors.Wrap(ErrWorkflowParamInvalid, "actor is required")
	}
	if workItem.Username == actor {
		return nil
	}
	inRoles, err := s.inPullRoles(ctx, workItem, actor)
	if err != nil {
		return err
	}
	if !inRoles {
		return &PermissionError{Reason: PermissionReasonNotInPullRoles, Username: actor}
	}
	return nil
}

func (s *ProcessServiceImpl) inPullRoles(ctx context.Context, workItem *WorkItem, username string) (bool, error) {
	for _, role := range workItem.PullRoles {
		ok, err := s.policy.IsGroupMember(ctx, username, role)
		if err != nil {
			return false, errors.WithMessagef(err, "IsGroupMember failed, username: %s, role: %s", username, role)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// activate 实例必须是 running
func (s *ProcessServiceImpl) activate(ctx context.Context, workItem *WorkItem, actor string) error {
	if workItem.Instance == nil || workItem.Instance.Status != ProcessInstanceStatusRunning {
		status := ""
		if workItem.Instance != nil {
			status = workItem.Instance.Status
		}
		return errors.WithMessagef(ErrProcessInstanceNotRunning, "workItemID: %d, instance status: %s", workItem.ID, status)
	}
	if workItem.Status != WorkItemStatusInactive {
		return errors.WithMessagef(ErrInvalidWorkItemStatus, "only inactive work item can be activated, workItemID: %d, status: %s", workItem.ID, workItem.Status)
	}
	if err := s.setStatus(ctx, workItem, WorkItemStatusInactive, WorkItemStatusActive); err != nil {
		return err
	}
	return s.event(ctx, workItem, "activated by "+actor)
}

func (s *ProcessServiceImpl) complete(ctx context.Context, workItem *WorkItem, actor string) error {
	if workItem.Status != WorkItemStatusActive {
		return errors.WithMessagef(ErrInvalidWorkItemStatus, "only active work item can be completed, workItemID: %d, status: %s", workItem.ID, workItem.Status)
	}
	if err := s.setStatus(ctx, workItem, WorkItemStatusActive, WorkItemStatusComplete); err != nil {
		return err
	}
	return s.event(ctx, workItem, "completed by "+actor)
}

func (s *ProcessServiceImpl) setStatus(ctx context.Context, workItem *WorkItem, from WorkItemStatus, to WorkItemStatus) error {
	err := s.repo.UpdateWorkItem(ctx, &UpdateWorkItemParams{
		Where: &UpdateWorkItemWhere{
			IDIn:     []int64{workItem.ID},
			StatusIn: []string{from},
		},
		Fields:   &UpdateWorkItemField{Status: &to},
		LimitMax: 1,
	})
	if err != nil {
		return errors.WithMessagef(err, "UpdateWorkItem failed, workItemID: %d, status: %s -> %s", workItem.ID, from, to)
	}
	workItem.Status = to
	s.metrics.WorkItemTransitions.WithLabelValues(to).Inc()
	return nil
}

func (s *ProcessServiceImpl) assign(ctx context.Context, workItem *WorkItem, username string) error {
	err := s.repo.UpdateWorkItem(ctx, &UpdateWorkItemParams{
		Where:    &UpdateWorkItemWhere{IDIn: []int64{workItem.ID}},
		Fields:   &UpdateWorkItemField{Username: &username},
		LimitMax: 1,
	})
	if err != nil {
		return errors.WithMessagef(err, "UpdateWorkItem failed, workItemID: %d, username: %s", workItem.ID, username)
	}
	workItem.Username = username
	return s.event(ctx, workItem, "assigned to "+username)
}

func (s *ProcessServiceImpl) setPullRoles(ctx context.Context, workItem *WorkItem, roles []string) error {
	roles = slices.Clone(roles)
	if roles == nil {
		roles = make([]string, 0)
	}
	err := s.repo.UpdateWorkItem(ctx, &UpdateWorkItemParams{
		Where:    &UpdateWorkItemWhere{IDIn: []int64{workItem.ID}},
		Fields:   &UpdateWorkItemField{PullRoles: roles},
		LimitMax: 1,
	})
	if err != nil {
		return errors.WithMessagef(err, "UpdateWorkItem failed, workItemID: %d", workItem.ID)
	}
	workItem.PullRoles = roles
	return nil
}

// event 审计事件, 落库同时打一条日志
func (s *ProcessServiceImpl) event(ctx context.Context, workItem *WorkItem, message string) error {
	_, err := s.repo.CreateEvent(ctx, &EventPo{WorkItemID: workItem.ID, Message: message})
	if err != nil {
		return errors.WithMessagef(err, "CreateEvent failed, workItemID: %d, message: %s", workItem.ID, message)
	}
	s.logger.Info(message, zap.Int64("work_item_id", workItem.ID), zap.Int64("instance_id", workItem.InstanceID))
	return nil
}
