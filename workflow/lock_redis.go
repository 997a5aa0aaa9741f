package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	delCommand = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
else
    return 0
end
`
)

func NewRedisWorkItemLock(redisClient redis.Cmdable) WorkItemLock {
	return &redisWorkItemLock{redisClient: redisClient}
}

type redisWorkItemLock struct {
	redisClient redis.Cmdable
}

func (d *redisWorkItemLock) NonBlockingSynchronized(ctx context.Context, key string, maxLockTimeDuration time.Duration, f func(ctx2 context.Context) error) error {
	if _, ok := ctx.Value(lockKey(key)).(string); ok {
		// 之前成功上锁了,继续执行即可
		return f(ctx)
	}
	owner := uuid.NewString()
	isLock, err := d.redisClient.SetNX(ctx, key, owner, maxLockTimeDuration).Result()
	if err != nil {
		return errors.WithMessagef(ErrLockFailed, "[redisWorkItemLock.NonBlockingSynchronized] key: %s, err: %v", key, err)
	}
	if !isLock {
		return errors.WithMessagef(ErrLockFailed, "[redisWorkItemLock.NonBlockingSynchronized] has been locked, key: %s", key)
	}
	defer d.release(key, owner)
	return f(context.WithValue(ctx, lockKey(key), owner))
}

func (d *redisWorkItemLock) release(key string, owner string) {
	// ctx 可能已经被cancel了,释放锁用新的context
	reply, err := d.redisClient.Eval(context.Background(), delCommand, []string{key}, owner).Int64()
	if err != nil {
		zap.L().Error("[redisWorkItemLock.release] release key failed", zap.String("key", key), zap.Error(err))
		return
	}
	if reply != 1 {
		zap.L().Warn("[redisWorkItemLock.release] key not released", zap.String("key", key), zap.Int64("reply", reply))
	}
}
