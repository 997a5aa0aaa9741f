package workflow

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var validatorUtil = validator.New()

var (
	ErrWorkflowParamInvalid      = errors.New("workflow param invalid")
	ErrProcessNotFound           = errors.New("process not found")
	ErrProcessNotFoundOrDisabled = errors.New("process not found or disabled")
	ErrProcessDisabled           = errors.New("process disabled")
	ErrProcessAlreadyExists      = errors.New("process already exists")
	ErrActivityNotFound          = errors.New("activity not found")
	ErrProcessInstanceNotFound   = errors.New("process instance not found")
	ErrProcessInstanceNotRunning = errors.New("process instance not running")
	ErrWorkItemNotFound          = errors.New("work item not found")
	ErrInvalidWorkItemStatus     = errors.New("invalid work item status")
	ErrUserNotFound              = errors.New("user not found")
	ErrGroupNotFound             = errors.New("group not found")
	ErrApplicationNotFound       = errors.New("application not found")
	ErrPushApplicationNotFound   = errors.New("push application not found")
	// ErrPermissionDenied 所有权限类错误的根, PermissionError.Is 会匹配它
	ErrPermissionDenied = errors.New("permission denied")
)

// PermissionReason 权限被拒绝的具体原因
type PermissionReason = string

const (
	// 用户没有通用的实例化权限 workflow.can_instantiate
	PermissionReasonMissingCapability PermissionReason = "missing_capability"
	// 用户不在流程同名的组里面,或者组没有 can_instantiate 权限
	PermissionReasonMissingScopedPermission PermissionReason = "missing_scoped_permission"
	// 认领工作项时用户不属于任何一个 pull role
	PermissionReasonNotInPullRoles PermissionReason = "not_in_pull_roles"
)

type PermissionError struct {
	Reason      PermissionReason
	ProcessName string
	Username    string
}

func (e *PermissionError) Error() string {
	switch e.Reason {
	case PermissionReasonMissingCapability:
		return fmt.Sprintf("permission needed, user: %s", e.Username)
	case PermissionReasonMissingScopedPermission:
		return fmt.Sprintf("permission needed to instantiate process %s, user: %s", e.ProcessName, e.Username)
	case PermissionReasonNotInPullRoles:
		return fmt.Sprintf("user %s is not in pull roles", e.Username)
	}
	return "permission denied"
}

func (e *PermissionError) Is(target error) bool {
	return target == ErrPermissionDenied
}

const (
	// CapabilityInstantiate 通用实例化能力,直接授予用户或者通过组授予
	CapabilityInstantiate = "workflow.can_instantiate"
	// ScopedPermissionInstantiate 流程同名组上需要的权限
	ScopedPermissionInstantiate = "can_instantiate"

	beginActivityTitle = "initial"
	// 标题为这个值的时候当作没有传标题
	placeholderInstanceTitle = "instance"
)

type ProcessInstanceStatus = string

const (
	ProcessInstanceStatusInitiated  ProcessInstanceStatus = "initiated"
	ProcessInstanceStatusRunning    ProcessInstanceStatus = "running"
	ProcessInstanceStatusActive     ProcessInstanceStatus = "active"
	ProcessInstanceStatusComplete   ProcessInstanceStatus = "complete"
	ProcessInstanceStatusTerminated ProcessInstanceStatus = "terminated"
	ProcessInstanceStatusSuspended  ProcessInstanceStatus = "suspended"
)

type WorkItemStatus = string

const (
	WorkItemStatusInactive  WorkItemStatus = "inactive"
	WorkItemStatusActive    WorkItemStatus = "active"
	WorkItemStatusSuspended WorkItemStatus = "suspended"
	// 应用执行失败需要人工处理,目前没有使用到
	WorkItemStatusFallout  WorkItemStatus = "fallout"
	WorkItemStatusComplete WorkItemStatus = "complete"
)

type ActivityKind = string

const (
	ActivityKindStandard ActivityKind = "standard"
	ActivityKindDummy    ActivityKind = "dummy"
	ActivityKindSubflow  ActivityKind = "subflow"
)

// JoinSplitMode 只做存储,目前不参与执行
type JoinSplitMode = string

const (
	JoinSplitModeAnd JoinSplitMode = "and"
	JoinSplitModeXor JoinSplitMode = "xor"
)

// DispatchMode 开始节点的分发方式
type DispatchMode = string

const (
	DispatchModeAutostart DispatchMode = "autostart"
	DispatchModePush      DispatchMode = "push"
	DispatchModePull      DispatchMode = "pull"
)

// IsClientError 判断是不是调用方的问题, api层用来决定按 error 还是 debug 打日志
func IsClientError(err error) bool {
	if err == nil {
		return false
	}
	causeErr := errors.Cause(err)
	return errors.Is(causeErr, ErrWorkflowParamInvalid) ||
		errors.Is(causeErr, ErrProcessNotFound) ||
		errors.Is(causeErr, ErrProcessNotFoundOrDisabled) ||
		errors.Is(causeErr, ErrProcessDisabled) ||
		errors.Is(causeErr, ErrProcessAlreadyExists) ||
		errors.Is(causeErr, ErrActivityNotFound) ||
		errors.Is(causeErr, ErrProcessInstanceNotFound) ||
		errors.Is(causeErr, ErrWorkItemNotFound) ||
		errors.Is(causeErr, ErrInvalidWorkItemStatus) ||
		errors.Is(causeErr, ErrProcessInstanceNotRunning) ||
		errors.Is(causeErr, ErrUserNotFound) ||
		errors.Is(causeErr, ErrGroupNotFound) ||
		errors.Is(causeErr, ErrPermissionDenied) ||
		errors.Is(causeErr, ErrLockFailed)
}
