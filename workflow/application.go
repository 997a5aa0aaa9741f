package workflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

var (
	applications     = sync.Map{}
	pushApplications = sync.Map{}
)

// Application autostart 活动绑定的应用, 需要外部实现
type Application interface {
	/**
	 * @description: 执行应用
	 * @param ctx context.Context 带超时, 超时之后返回值会被忽略
	 * @param workItem *WorkItem 工作项的副本, 修改不会保存
	 * @param params *JSONParams 活动上配置的 app_param
	 * @return bool true 表示工作项可以完成
	 * @return error 不为nil的时候工作项保持 active
	 */
	Run(ctx context.Context, workItem *WorkItem, params *JSONParams) (bool, error)
}

// PushApplication 计算工作项应该推给哪个用户
type PushApplication interface {
	/**
	 * @description: 计算目标用户
	 * @param ctx context.Context
	 * @param workItem *WorkItem 工作项的副本
	 * @param params *JSONParams 活动上配置的 pushapp_param
	 * @return string 目标用户的 username
	 */
	Push(ctx context.Context, workItem *WorkItem, params *JSONParams) (string, error)
}

type ApplicationFunc func(ctx context.Context, workItem *WorkItem, params *JSONParams) (bool, error)

func (f ApplicationFunc) Run(ctx context.Context, workItem *WorkItem, params *JSONParams) (bool, error) {
	return f(ctx, workItem, params)
}

type PushApplicationFunc func(ctx context.Context, workItem *WorkItem, params *JSONParams) (string, error)

func (f PushApplicationFunc) Push(ctx context.Context, workItem *WorkItem, params *JSONParams) (string, error) {
	return f(ctx, workItem, params)
}

func NewApplicationFunc(f func(ctx context.Context, workItem *WorkItem, params *JSONParams) (bool, error)) Application {
	return ApplicationFunc(f)
}

func NewPushApplicationFunc(f func(ctx context.Context, workItem *WorkItem, params *JSONParams) (string, error)) PushApplication {
	return PushApplicationFunc(f)
}

/*
*
  - @description: 注册应用的运行时实现, url 和 AddApplication 持久化的 url 对应
  - @param url string
  - @param app Application
  - @return error
*/
func RegisterApplication(url string, app Application) error {
	if app == nil {
		return errors.New("application is nil")
	}
	if _, loaded := applications.LoadOrStore(url, app); loaded {
		return errors.New(fmt.Sprintf("application already registered, url: %s", url))
	}
	return nil
}

func RegisterPushApplication(url string, app PushApplication) error {
	if app == nil {
		return errors.New("push application is nil")
	}
	if _, loaded := pushApplications.LoadOrStore(url, app); loaded {
		return errors.New(fmt.Sprintf("push application already registered, url: %s", url))
	}
	return nil
}

func getApplication(url string) (Application, error) {
	i, ok := applications.Load(url)
	if !ok {
		return nil, errors.WithMessagef(ErrApplicationNotFound, "url: %s", url)
	}
	app, ok := i.(Application)
	if !ok {
		return nil, errors.WithMessagef(ErrApplicationNotFound, "url: %s, type error,please check code", url)
	}
	return app, nil
}

func getPushApplication(url string) (PushApplication, error) {
	i, ok := pushApplications.Load(url)
	if !ok {
		return nil, errors.WithMessagef(ErrPushApplicationNotFound, "url: %s", url)
	}
	app, ok := i.(PushApplication)
	if !ok {
		return nil, errors.WithMessagef(ErrPushApplicationNotFound, "url: %s, type error,please check code", url)
	}
	return app, nil
}

const (
	// PushToRequester 推回给流程的发起人
	PushToRequester = "goflow.pushapps.to_requester"
	// PushToUser 推给 pushapp_param 里面 {"username": "..."} 指定的用户
	PushToUser = "goflow.pushapps.to_user"
)

func init() {
	_ = RegisterPushApplication(PushToRequester, NewPushApplicationFunc(
		func(ctx context.Context, workItem *WorkItem, params *JSONParams) (string, error) {
			if workItem.Instance == nil || workItem.Instance.Username == "" {
				return "", errors.New("work item has no requester")
			}
			return workItem.Instance.Username, nil
		}))
	_ = RegisterPushApplication(PushToUser, NewPushApplicationFunc(
		func(ctx context.Context, workItem *WorkItem, params *JSONParams) (string, error) {
			username, ok := params.GetString("username")
			if !ok || username == "" {
				return "", errors.Wrap(ErrWorkflowParamInvalid, "pushapp_param username is required")
			}
			return username, nil
		}))
}
