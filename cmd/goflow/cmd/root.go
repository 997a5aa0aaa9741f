package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/blingmoon/simple-goflow/internal/config"
	"github.com/blingmoon/simple-goflow/workflow"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	cfgFile      string
	outputFormat string

	// app 在 PersistentPreRunE 里初始化, 子命令直接使用
	app *application
)

type application struct {
	cfg       *config.Config
	logger    *zap.Logger
	db        *gorm.DB
	redis     *redis.Client
	registry  *prometheus.Registry
	service   workflow.ProcessService
	directory workflow.DirectoryRepo
}

var rootCmd = &cobra.Command{
	Use:           "goflow",
	Short:         "Workflow process administration and start CLI",
	Long:          `goflow manages process definitions, users and groups, and starts process instances against a sqlite database.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		app, err = newApplication(cfgFile)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		app.close()
	},
}

// Execute 执行根命令, 错误已经打印过
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./goflow.yaml or $HOME/.goflow/goflow.yaml)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "table", "output format: table or json")
}

func newApplication(cfgFile string) (*application, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	// 锁的实现用的是全局 logger
	zap.ReplaceGlobals(logger)

	db, err := gorm.Open(sqlite.Open(cfg.DB.DSN), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		return nil, errors.Wrapf(err, "open database failed, dsn: %s", cfg.DB.DSN)
	}
	r := &application{cfg: cfg, logger: logger, db: db, registry: prometheus.NewRegistry()}
	if err := db.AutoMigrate(workflow.AllModels()...); err != nil {
		return nil, multierr.Append(errors.Wrap(err, "migrate database failed"), r.closeResources())
	}
	r.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var lock workflow.WorkItemLock
	if cfg.Redis.Addr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := r.redis.Ping(context.Background()).Err(); err != nil {
			// 已经打开的数据库和 redis 客户端也要关掉
			return nil, multierr.Append(errors.Wrapf(err, "connect redis failed, addr: %s", cfg.Redis.Addr), r.closeResources())
		}
		lock = workflow.NewRedisWorkItemLock(r.redis)
		logger.Debug("using redis work item lock", zap.String("addr", cfg.Redis.Addr))
	} else {
		lock = workflow.NewLocalWorkItemLock()
	}

	r.directory = workflow.NewDirectoryRepo(db)
	r.service = workflow.NewProcessService(
		workflow.NewProcessRepo(db),
		r.directory,
		workflow.NewAuthorizationPolicy(db),
		lock,
		workflow.WithLogger(logger),
		workflow.WithMetrics(workflow.NewMetrics(r.registry)),
		workflow.WithSettings(&cfg.Workflow),
	)
	return r, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.Log.Development {
		zapCfg = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.Log.Level)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log level: %s", cfg.Log.Level)
	}
	zapCfg.Level = level
	// 标准输出留给命令结果
	zapCfg.OutputPaths = []string{"stderr"}
	logger, err := zapCfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "build logger failed")
	}
	return logger, nil
}

func (r *application) close() {
	if r == nil {
		return
	}
	if err := r.closeResources(); err != nil {
		r.logger.Warn("close resources failed", zap.Error(err))
	}
	_ = r.logger.Sync()
}

// closeResources 关闭 redis 和数据库, 没打开的跳过
func (r *application) closeResources() error {
	var err error
	if r.redis != nil {
		err = multierr.Append(err, r.redis.Close())
	}
	if r.db != nil {
		sqlDB, dbErr := r.db.DB()
		if dbErr != nil {
			err = multierr.Append(err, dbErr)
		} else {
			err = multierr.Append(err, sqlDB.Close())
		}
	}
	return err
}

func isJSONOutput() bool {
	return outputFormat == "json"
}

func printJSON(v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal json failed")
	}
	fmt.Println(string(output))
	return nil
}
