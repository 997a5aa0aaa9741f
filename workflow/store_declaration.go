package workflow

import (
	"context"
)

// ProcessRepo 流程定义和运行时数据的存储
type ProcessRepo interface {
	CreateProcess(ctx context.Context, process *ProcessPo) (*ProcessPo, error)
	QueryProcess(ctx context.Context, param *QueryProcessParams) ([]*ProcessPo, error)
	UpdateProcess(ctx context.Context, param *UpdateProcessParams) error

	CreateActivity(ctx context.Context, activity *ActivityPo) (*ActivityPo, error)
	QueryActivity(ctx context.Context, param *QueryActivityParams) ([]*ActivityPo, error)
	UpdateActivity(ctx context.Context, param *UpdateActivityParams) error

	CreateApplication(ctx context.Context, application *ApplicationPo) (*ApplicationPo, error)
	QueryApplication(ctx context.Context, param *QueryApplicationParams) ([]*ApplicationPo, error)

	CreateProcessInstance(ctx context.Context, instance *ProcessInstancePo) (*ProcessInstancePo, error)
	QueryProcessInstance(ctx context.Context, param *QueryProcessInstanceParams) ([]*ProcessInstancePo, error)
	UpdateProcessInstance(ctx context.Context, param *UpdateProcessInstanceParams) error

	CreateWorkItem(ctx context.Context, workItem *WorkItemPo) (*WorkItemPo, error)
	QueryWorkItem(ctx context.Context, param *QueryWorkItemParams) ([]*WorkItemPo, error)
	UpdateWorkItem(ctx context.Context, param *UpdateWorkItemParams) error

	CreateEvent(ctx context.Context, event *EventPo) (*EventPo, error)
	QueryEvent(ctx context.Context, param *QueryEventParams) ([]*EventPo, error)

	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// DirectoryRepo 用户、组、权限
type DirectoryRepo interface {
	CreateUser(ctx context.Context, user *UserPo) (*UserPo, error)
	GetUserByUsername(ctx context.Context, username string) (*UserPo, error)
	CreateGroup(ctx context.Context, group *GroupPo) (*GroupPo, error)
	GetGroupByName(ctx context.Context, name string) (*GroupPo, error)
	AddUserToGroup(ctx context.Context, userID int64, groupID int64) error
	GrantUserPermission(ctx context.Context, userID int64, codename string) error
	GrantGroupPermission(ctx context.Context, groupID int64, codename string) error
}
