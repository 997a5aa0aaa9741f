package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func NewLocalWorkItemLock() WorkItemLock {
	return &localWorkItemLock{
		locks: &sync.Map{},
	}
}

type localWorkItemLock struct {
	locks *sync.Map // key -> *localLockInfo
}

type localLockInfo struct {
	mu    sync.Mutex
	owner string      // 持有者标识,释放的时候校验
	timer *time.Timer // 超时自动释放
}

func (l *localWorkItemLock) NonBlockingSynchronized(ctx context.Context, key string, maxLockTimeDuration time.Duration, f func(context.Context) error) error {
	if _, ok := ctx.Value(lockKey(key)).(string); ok {
		// 已经持有锁,重入
		return f(ctx)
	}
	owner := uuid.NewString()

	lockInfo, _ := l.locks.LoadOrStore(key, &localLockInfo{})
	info := lockInfo.(*localLockInfo)
	if !info.mu.TryLock() {
		return errors.WithMessagef(ErrLockFailed, "[localWorkItemLock.NonBlockingSynchronized] has been locked, key: %s", key)
	}
	info.owner = owner
	info.timer = time.AfterFunc(maxLockTimeDuration, func() {
		l.release(key, owner)
	})
	defer l.release(key, owner)

	return f(context.WithValue(ctx, lockKey(key), owner))
}

func (l *localWorkItemLock) release(key string, owner string) {
	lockInfo, ok := l.locks.Load(key)
	if !ok {
		return
	}
	info := lockInfo.(*localLockInfo)
	if info.owner != owner {
		// 超时后已经被别人拿到了
		zap.L().Warn("[localWorkItemLock.release] owner mismatch",
			zap.String("key", key), zap.String("expected", info.owner), zap.String("got", owner))
		return
	}
	if info.timer != nil {
		info.timer.Stop()
	}
	info.owner = ""
	l.locks.Delete(key)
	info.mu.Unlock()
}
