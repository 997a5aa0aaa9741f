package workflow

import "time"

// Settings 引擎运行需要的配置
type Settings struct {
	// AutoUsername autostart 活动用来激活和完成工作项的系统用户
	AutoUsername string `mapstructure:"auto_username" validate:"required"`
	// ApplicationTimeout autostart 应用和 push 应用的最长执行时间, 超时当作没有完成
	ApplicationTimeout time.Duration `mapstructure:"application_timeout"`
	// LockTimeout 工作项状态变更锁的最长持有时间
	LockTimeout time.Duration `mapstructure:"lock_timeout"`
}

func DefaultSettings() *Settings {
	return &Settings{
		AutoUsername:       "workflow",
		ApplicationTimeout: 30 * time.Second,
		LockTimeout:        10 * time.Minute,
	}
}

func (s *Settings) withDefaults() *Settings {
	ret := DefaultSettings()
	if s == nil {
		return ret
	}
	if s.AutoUsername != "" {
		ret.AutoUsername = s.AutoUsername
	}
	if s.ApplicationTimeout > 0 {
		ret.ApplicationTimeout = s.ApplicationTimeout
	}
	if s.LockTimeout > 0 {
		ret.LockTimeout = s.LockTimeout
	}
	return ret
}
