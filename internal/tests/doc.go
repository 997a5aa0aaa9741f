// Package tests 是 simple-goflow 的集成测试。
//
// 测试用 commonregister 初始化示例数据, 然后通过 workflow.ProcessService
// 走完整的启动、权限检查、认领、激活、完成流程, 包括并发场景。
//
// 运行测试:
//
//	go test ./internal/tests/...
package tests
