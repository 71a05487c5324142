// 文件: pkg/api/router.go
// HTTP 接口
//
// 路由:
//   GET /api/health                                   健康检查 + 轮询统计
//   GET /bot/scheduled-alarms?utcHour=H&utcMinute=M   机器人轮询到点闹钟 (需要 API Key)

package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"raidhub.com/pkg/poller"
	"raidhub.com/pkg/schedule"
)

// DueFinder 到点查询, 通常是 *schedule.Matcher
type DueFinder interface {
	FindDueAlarms(ctx context.Context, hour, minute int, day time.Weekday) ([]schedule.DueAlarm, error)
}

// StatsFunc 轮询统计来源
type StatsFunc func() poller.Stats

// Handler HTTP 处理器
type Handler struct {
	finder DueFinder
	keys   []string
	clock  schedule.Clock
	stats  StatsFunc // 可选
	log    *zap.Logger
}

// NewHandler keys 为允许的机器人 API Key
func NewHandler(finder DueFinder, keys []string, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		finder: finder,
		keys:   keys,
		clock:  schedule.SystemClock{},
		log:    log,
	}
}

// SetClock 替换时钟
func (h *Handler) SetClock(c schedule.Clock) {
	h.clock = c
}

// SetStats 健康检查附带轮询统计
func (h *Handler) SetStats(fn StatsFunc) {
	h.stats = fn
}

// NewRouter 组装路由
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.log))

	api := r.Group("/api")
	{
		api.GET("/health", h.Health)
	}

	bot := r.Group("/bot", APIKeyMiddleware(h.keys))
	{
		bot.GET("/scheduled-alarms", h.ScheduledAlarms)
	}

	return r
}

// requestLogger 每个请求一条 debug 日志
func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("[HTTP] request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
