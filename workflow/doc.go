// Package workflow 提供流程定义、流程启动和工作项流转。
//
// 主要特性：
//   - 流程工厂：AddProcess 创建流程的同时创建标题为 "initial" 的开始活动
//   - 启动权限：CheckStartInstancePerm 检查流程是否启用、用户是否有 workflow.can_instantiate,
//     以及是否属于流程同名且有 can_instantiate 的组
//   - 流程启动：Start 创建运行中的流程实例和开始活动上的工作项, 按开始活动的配置分发
//     autostart 执行应用, push 推给应用算出来的用户, pull 交给活动的角色认领
//   - 数据持久化：基于 GORM, 可使用 MySQL、PostgreSQL、SQLite 等数据库
//   - 并发安全：工作项的状态变更支持本地锁和分布式锁（Redis）
//
// 基础使用示例:
//
//	db, _ := gorm.Open(sqlite.Open("goflow.db"), &gorm.Config{})
//	db.AutoMigrate(workflow.AllModels()...)
//
//	directory := workflow.NewDirectoryRepo(db)
//	service := workflow.NewProcessService(
//	    workflow.NewProcessRepo(db),
//	    directory,
//	    workflow.NewAuthorizationPolicy(db),
//	    workflow.NewLocalWorkItemLock(),
//	    workflow.WithLogger(logger),
//	)
//
//	// 注册应用的运行时实现, 再登记 url 让活动可以绑定
//	workflow.RegisterApplication("apps.notify", workflow.NewApplicationFunc(
//	    func(ctx context.Context, workItem *workflow.WorkItem, params *workflow.JSONParams) (bool, error) {
//	        channel, _ := params.GetString("channel")
//	        return send(ctx, channel, workItem.Instance.Title) == nil, nil
//	    }))
//	service.AddApplication(ctx, &workflow.AddApplicationReq{URL: "apps.notify", Kind: workflow.ApplicationKindApplication})
//
//	process, _ := service.AddProcess(ctx, &workflow.AddProcessReq{Title: "expense_report"})
//	service.UpdateActivity(ctx, &workflow.UpdateActivityReq{
//	    ActivityID: process.Begin.ID,
//	    Fields: &workflow.UpdateActivityField{
//	        Autostart:      workflow.Bool(true),
//	        ApplicationURL: workflow.String("apps.notify"),
//	        AppParam:       workflow.String(`{"channel":"mail"}`),
//	    },
//	})
//
//	if err := service.CheckStartInstancePerm(ctx, "expense_report", "alice"); err != nil {
//	    return err
//	}
//	workItem, err := service.Start(ctx, &workflow.StartProcessReq{
//	    ProcessName: "expense_report",
//	    Username:    "alice",
//	    Item:        workflow.Item{Type: "expense", ID: "EXP-42"},
//	})
//
// 实例标题：
//
// StartProcessReq.Title 为空或者为 "instance" 的时候, 标题为 "<流程标题> <Item>",
// Item 有 Label 用 Label, 否则为 "Type#ID"。
//
// autostart 应用执行失败、超时、panic 或者返回没有完成都不是错误,
// 工作项保持 active, 记录在 goflow_autostart_incomplete_total 指标里。
package workflow
