// 文件: pkg/app/app.go
// 进程装配
//
// 顺序: 存储 (mysql|memory) -> Redis 索引 (可选) -> 闹钟服务 -> 发布者 -> 轮询器 -> HTTP
// 退出: 停 HTTP -> 停轮询 -> 关闭发布者 / 索引 / 数据库

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"raidhub.com/pkg/alarm"
	"raidhub.com/pkg/api"
	"raidhub.com/pkg/config"
	"raidhub.com/pkg/kafka"
	"raidhub.com/pkg/nats"
	"raidhub.com/pkg/notify"
	"raidhub.com/pkg/poller"
	"raidhub.com/pkg/schedule"
	"raidhub.com/pkg/store"
)

// App 一个 raidhub 进程
type App struct {
	cfg config.Config
	log *zap.Logger

	repo      store.Repository
	index     *alarm.RedisIndex // 未配置时为 nil
	service   *alarm.Service
	matcher   *schedule.Matcher
	publisher notify.Publisher
	poller    *poller.Poller
	httpSrv   *http.Server

	closers []func() error
}

// New 按配置装配全部组件
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	a := &App{cfg: cfg, log: log}
	if err := a.init(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	// 1. 存储
	switch a.cfg.Store {
	case config.StoreMemory:
		a.repo = store.NewMemoryRepository()
		a.log.Warn("using in-memory store, data is lost on restart")
	default:
		db, err := store.OpenMySQL(a.cfg.MySQLDSN)
		if err != nil {
			return err
		}
		a.repo = store.NewMySQLRepository(db)
		if sqlDB, err := db.DB(); err == nil {
			a.closers = append(a.closers, sqlDB.Close)
		}
		a.log.Info("mysql ready")
	}

	resolver := alarm.NewStaticResolver()
	if a.cfg.GuildsFile != "" {
		loaded, err := alarm.LoadStaticResolver(a.cfg.GuildsFile)
		if err != nil {
			return err
		}
		resolver = loaded
	}
	a.service = alarm.NewService(a.repo, alarm.NewOwnerAuthorizer(a.repo), resolver, a.log.Named("alarm"))

	// 2. 索引: 到点查询走 Redis, 否则直接查库
	var finder schedule.AlarmFinder = a.repo
	if a.cfg.RedisAddr != "" {
		index := alarm.NewRedisIndex(a.cfg.RedisAddr)
		a.closers = append(a.closers, index.Close)
		if err := index.Ping(ctx); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		a.index = index
		a.service.SetIndex(index)
		if err := a.service.RebuildIndex(ctx); err != nil {
			return fmt.Errorf("rebuild alarm index: %w", err)
		}
		finder = index
	}
	a.matcher = schedule.NewMatcher(finder)

	// 3. 发布者
	publisher, err := a.newPublisher()
	if err != nil {
		return err
	}
	a.publisher = publisher

	// 4. 轮询器
	ids, err := notify.NewIDGenerator(a.cfg.SnowflakeNode)
	if err != nil {
		return fmt.Errorf("snowflake node: %w", err)
	}
	a.poller = poller.New(a.matcher, a.publisher, ids, poller.Config{
		Interval:    a.cfg.PollInterval,
		MaxCatchUp:  a.cfg.PollMaxCatchUp,
		QuarterOnly: a.cfg.PollQuarterOnly,
	}, a.log.Named("poller"))
	if a.index != nil {
		a.poller.SetClaimer(a.index)
	}

	// 5. HTTP
	handler := api.NewHandler(a.matcher, []string{a.cfg.BotAPIKey}, a.log.Named("api"))
	handler.SetStats(a.poller.Stats)
	a.httpSrv = &http.Server{
		Addr:         a.cfg.HTTPAddr,
		Handler:      api.NewRouter(handler),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return nil
}

func (a *App) newPublisher() (notify.Publisher, error) {
	switch a.cfg.Notify {
	case config.NotifyNats:
		pub, err := nats.NewPublisher(a.cfg.NatsURL, a.log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { pub.Close(); return nil })
		a.log.Info("publishing due alarms to nats", zap.String("subject", notify.SubjectAlarmDue))
		return notify.NewNatsPublisher(pub), nil

	case config.NotifyKafka:
		producer, err := kafka.NewProducer(kafka.DefaultProducerConfig(a.cfg.KafkaBrokers), a.log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, producer.Close)
		a.log.Info("publishing due alarms to kafka", zap.String("topic", notify.TopicAlarmDue))
		return notify.NewKafkaPublisher(producer), nil

	default:
		return notify.NewLogPublisher(a.log.Named("notify")), nil
	}
}

// Service 闹钟服务 (供管理工具和测试使用)
func (a *App) Service() *alarm.Service { return a.service }

// Handler HTTP 处理器
func (a *App) Handler() http.Handler { return a.httpSrv.Handler }

// Run 启动轮询和 HTTP, 收到 SIGINT/SIGTERM 或 ctx 取消后优雅退出
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.log.Info("starting raidhub",
		zap.String("http", a.cfg.HTTPAddr),
		zap.String("store", a.cfg.Store),
		zap.String("notify", a.cfg.Notify),
		zap.Bool("redis_index", a.index != nil))

	a.poller.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case runErr = <-errCh:
		a.log.Error("http server error", zap.Error(runErr))
	}

	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := a.httpSrv.Shutdown(shCtx); err != nil {
		a.log.Warn("http server shutdown error", zap.Error(err))
	}
	cancel()

	a.poller.Stop()
	a.close()
	return runErr
}

// close 逆序释放资源
func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}
