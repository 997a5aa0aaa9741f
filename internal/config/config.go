package config

import (
	"strings"

	"github.com/blingmoon/simple-goflow/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

var validate = validator.New()

// Config goflow 命令行和 http 服务的配置
type Config struct {
	DB struct {
		// DSN sqlite 文件路径, ":memory:" 表示内存库
		DSN string `mapstructure:"dsn" validate:"required"`
	} `mapstructure:"db"`
	Redis struct {
		// Addr 为空的时候工作项锁用本地锁
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`
	HTTP struct {
		Addr string `mapstructure:"addr" validate:"required"`
	} `mapstructure:"http"`
	Log struct {
		Level       string `mapstructure:"level" validate:"oneof=debug info warn error"`
		Development bool   `mapstructure:"development"`
	} `mapstructure:"log"`
	Workflow workflow.Settings `mapstructure:"workflow"`
}

func setDefaults(v *viper.Viper) {
	settings := workflow.DefaultSettings()
	v.SetDefault("db.dsn", "goflow.db")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("workflow.auto_username", settings.AutoUsername)
	v.SetDefault("workflow.application_timeout", settings.ApplicationTimeout)
	v.SetDefault("workflow.lock_timeout", settings.LockTimeout)
}

// Load 读取配置, cfgFile 为空的时候在当前目录和 $HOME/.goflow 下找 goflow.yaml,
// 找不到文件不算错误. 环境变量 GOFLOW_DB_DSN 这种形式覆盖文件里的值
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("goflow")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.goflow")
	}
	v.SetEnvPrefix("GOFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrapf(err, "read config failed, file: %s", cfgFile)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config failed")
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	if cfg.Workflow.ApplicationTimeout < 0 || cfg.Workflow.LockTimeout < 0 {
		return nil, errors.Errorf("invalid config, negative timeout, application_timeout: %s, lock_timeout: %s",
			cfg.Workflow.ApplicationTimeout, cfg.Workflow.LockTimeout)
	}
	return &cfg, nil
}

