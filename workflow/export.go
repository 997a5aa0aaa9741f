package workflow

import (
	"context"

	"go.uber.org/zap"
)

type ProcessService interface {
	/**
	 * @description: 启动流程, 创建运行中的流程实例和开始活动上的工作项,
	 *               再按开始活动的模式分发工作项 autostart > push > pull
	 * @param ctx context.Context
	 * @param req *StartProcessReq
	 *				  req.ProcessName 已启用的流程标题
	 *				  req.Username 触发的用户
	 *				  req.Item 触发的业务对象
	 *				  req.Title 实例标题, 为空或者为 "instance" 的时候用 "<ProcessName> <Item>"
	 * @return *WorkItem, error
	 */
	Start(ctx context.Context, req *StartProcessReq) (*WorkItem, error)
	/**
	 * @description: 检查流程是否启用以及用户是否有权限实例化, 通过的时候返回nil
	 *               没有副作用, 需要鉴权的调用方在 Start 之前调用
	 * @param ctx context.Context
	 * @param processName string
	 * @param username string
	 * @return error ErrProcessNotFound, ErrProcessDisabled, *PermissionError
	 */
	CheckStartInstancePerm(ctx context.Context, processName string, username string) error
	// ProcessIsEnabled 流程不存在返回 ErrProcessNotFound
	ProcessIsEnabled(ctx context.Context, title string) (bool, error)
	/**
	 * @description: 创建流程, 同时创建标题为 "initial" 的开始活动
	 * @param ctx context.Context
	 * @param req *AddProcessReq
	 * @return *Process Begin 已经填充
	 */
	AddProcess(ctx context.Context, req *AddProcessReq) (*Process, error)
	GetProcess(ctx context.Context, title string) (*Process, error)
	ListProcesses(ctx context.Context, params *QueryProcessParams) ([]*Process, error)
	SetProcessEnabled(ctx context.Context, title string, enabled bool) error
	AddActivity(ctx context.Context, req *AddActivityReq) (*Activity, error)
	UpdateActivity(ctx context.Context, req *UpdateActivityReq) (*Activity, error)
	// AddApplication 持久化应用的 url, 运行时实现通过 RegisterApplication / RegisterPushApplication 注册
	AddApplication(ctx context.Context, req *AddApplicationReq) error

	GetWorkItem(ctx context.Context, workItemID int64) (*WorkItem, error)
	/**
	 * @description: 激活工作项, 流程实例必须是 running, 工作项必须是 inactive
	 *				 actor 必须是工作项的用户或者属于 pull roles
	 *				 一个工作项同时只能有一个操作, 拿不到锁返回 ErrLockFailed
	 */
	ActivateWorkItem(ctx context.Context, workItemID int64, actor string) (*WorkItem, error)
	// CompleteWorkItem 完成 active 的工作项
	CompleteWorkItem(ctx context.Context, workItemID int64, actor string) (*WorkItem, error)
	// ClaimWorkItem pull 模式下 pull roles 里的成员认领工作项
	ClaimWorkItem(ctx context.Context, workItemID int64, username string) (*WorkItem, error)
	ListWorkItemEvents(ctx context.Context, workItemID int64) ([]*Event, error)
}

// ProcessServiceImpl 流程服务
type ProcessServiceImpl struct {
	repo      ProcessRepo
	directory DirectoryRepo
	policy    AuthorizationPolicy
	lock      WorkItemLock
	settings  *Settings
	logger    *zap.Logger
	metrics   *Metrics
}

type Option func(s *ProcessServiceImpl)

func WithLogger(logger *zap.Logger) Option {
	return func(s *ProcessServiceImpl) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(s *ProcessServiceImpl) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

func WithSettings(settings *Settings) Option {
	return func(s *ProcessServiceImpl) {
		s.settings = settings.withDefaults()
	}
}

func NewProcessService(repo ProcessRepo, directory DirectoryRepo, policy AuthorizationPolicy, lock WorkItemLock, opts ...Option) ProcessService {
	s := &ProcessServiceImpl{
		repo:      repo,
		directory: directory,
		policy:    policy,
		lock:      lock,
		settings:  DefaultSettings(),
		logger:    zap.NewNop(),
		metrics:   NewMetrics(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
