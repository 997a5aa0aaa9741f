package commonregister

import (
	"context"
	"sync"

	"github.com/blingmoon/simple-goflow/workflow"
	"github.com/pkg/errors"
)

const (
	LeaveRequestProcess  = "leave_request"
	ExpenseReportProcess = "expense_report"
	TicketProcess        = "ticket"

	// NotifyApplication 记一条通知就完成, expense_report 的开始活动用它
	NotifyApplication = "goflow.apps.notify"

	ManagersGroup = "managers"
	AutoUsername  = "workflow"
)

var (
	registerOnce sync.Once
	registerErr  error

	notifyMu sync.Mutex
	notified []string
)

// Notified 返回 NotifyApplication 收到的实例标题
func Notified() []string {
	notifyMu.Lock()
	defer notifyMu.Unlock()
	return append([]string(nil), notified...)
}

func registerApplications() error {
	registerOnce.Do(func() {
		registerErr = workflow.RegisterApplication(NotifyApplication, workflow.NewApplicationFunc(
			func(ctx context.Context, workItem *workflow.WorkItem, params *workflow.JSONParams) (bool, error) {
				channel, _ := params.GetString("channel")
				if channel == "" {
					return false, errors.New("notify channel is required")
				}
				notifyMu.Lock()
				defer notifyMu.Unlock()
				notified = append(notified, workItem.Instance.Title)
				return true, nil
			}))
	})
	return registerErr
}

/**
 * @description: 初始化示例数据
 *				 用户 alice(发起人) bob(经理) workflow(系统用户)
 *				 leave_request: pull 给 managers 组
 *				 expense_report: autostart, 通知之后直接完成
 *				 ticket: push 回发起人
 *				 alice 有三个流程的启动权限
 * @param ctx context.Context
 * @param service workflow.ProcessService
 * @param directory workflow.DirectoryRepo
 * @return error
 */
func RegisterLeaveRequest(ctx context.Context, service workflow.ProcessService, directory workflow.DirectoryRepo) error {
	if err := registerApplications(); err != nil {
		return errors.Wrap(err, "register applications failed")
	}
	users := make(map[string]*workflow.UserPo)
	for _, username := range []string{"alice", "bob", AutoUsername} {
		user, err := directory.CreateUser(ctx, &workflow.UserPo{Username: username})
		if err != nil {
			return errors.WithMessagef(err, "create user failed, username: %s", username)
		}
		users[username] = user
	}
	if err := directory.GrantUserPermission(ctx, users["alice"].ID, workflow.CapabilityInstantiate); err != nil {
		return err
	}
	managers, err := directory.CreateGroup(ctx, &workflow.GroupPo{Name: ManagersGroup})
	if err != nil {
		return err
	}
	if err := directory.AddUserToGroup(ctx, users["bob"].ID, managers.ID); err != nil {
		return err
	}

	if err := service.AddApplication(ctx, &workflow.AddApplicationReq{URL: NotifyApplication, Kind: workflow.ApplicationKindApplication}); err != nil {
		return err
	}
	if err := service.AddApplication(ctx, &workflow.AddApplicationReq{URL: workflow.PushToRequester, Kind: workflow.ApplicationKindPush}); err != nil {
		return err
	}

	begins := map[string]*workflow.UpdateActivityField{
		LeaveRequestProcess: {Roles: []string{ManagersGroup}},
		ExpenseReportProcess: {
			Autostart:      workflow.Bool(true),
			Autofinish:     workflow.Bool(true),
			ApplicationURL: workflow.String(NotifyApplication),
			AppParam:       workflow.String(`{"channel":"mail"}`),
		},
		TicketProcess: {PushApplicationURL: workflow.String(workflow.PushToRequester)},
	}
	for _, title := range []string{LeaveRequestProcess, ExpenseReportProcess, TicketProcess} {
		process, err := service.AddProcess(ctx, &workflow.AddProcessReq{Title: title})
		if err != nil {
			return err
		}
		_, err = service.UpdateActivity(ctx, &workflow.UpdateActivityReq{ActivityID: process.Begin.ID, Fields: begins[title]})
		if err != nil {
			return err
		}
		// 流程同名组, 有 can_instantiate 的成员才能启动
		group, err := directory.CreateGroup(ctx, &workflow.GroupPo{Name: title})
		if err != nil {
			return err
		}
		if err := directory.GrantGroupPermission(ctx, group.ID, workflow.ScopedPermissionInstantiate); err != nil {
			return err
		}
		if err := directory.AddUserToGroup(ctx, users["alice"].ID, group.ID); err != nil {
			return err
		}
	}
	return nil
}
