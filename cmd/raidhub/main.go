// 文件: cmd/raidhub/main.go
// raidhub 服务: 闹钟存储 + 到点轮询 + 机器人接口
//
// 配置见 pkg/config (RAIDHUB_* 环境变量, 可放在 .env)

package main

import (
	"context"
	"os"

	"go.uber.org/zap"

	"raidhub.com/pkg/app"
	"raidhub.com/pkg/config"
	"raidhub.com/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// 还没有日志
		_, _ = os.Stderr.WriteString("config error: " + err.Error() + "\n")
		os.Exit(2)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger init error: " + err.Error() + "\n")
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("app init failed", zap.Error(err))
	}

	if err := application.Run(ctx); err != nil {
		log.Fatal("app run failed", zap.Error(err))
	}
}
