package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrLockFailed = errors.New("lock failed")
)

type WorkItemLock interface {
	// NonBlockingSynchronized
	//  @Description:  1.非阻塞同步块,拿不到锁立刻返回 ErrLockFailed
	//                 2.同一个ctx里面可以重入
	//  @param ctx 原来的ctx
	//  @param key 锁的key, 一般用 workItemOpLockKey 生成
	//  @param maxLockTimeDuration 锁最大的持有时间,超时自动释放
	//  @param f 持有锁期间执行的闭包
	//  @return error
	NonBlockingSynchronized(ctx context.Context, key string, maxLockTimeDuration time.Duration, f func(context.Context) error) error
}

type lockKey string

func workItemOpLockKey(workItemID int64) string {
	return fmt.Sprintf("goflow_work_item_op_%d", workItemID)
}
