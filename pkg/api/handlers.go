package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"raidhub.com/pkg/schedule"
)

// Health 健康检查
func (h *Handler) Health(c *gin.Context) {
	body := gin.H{
		"status":    "ok",
		"message":   "raidhub is running",
		"timestamp": h.clock.Now().UTC().Format(time.RFC3339),
	}
	if h.stats != nil {
		s := h.stats()
		body["poller"] = gin.H{
			"ticks":      s.Ticks,
			"minutes":    s.Minutes,
			"due":        s.Due,
			"published":  s.Published,
			"failed":     s.Failed,
			"duplicates": s.Duplicates,
			"lastMinute": s.LastMinute,
		}
	}
	c.JSON(http.StatusOK, body)
}

// ScheduledAlarms 查询某个 UTC 时刻到点的闹钟
//
// 星期取离当前时间最近的那次 hh:mm, 机器人稍晚发来请求也能匹配到正确的一天
func (h *Handler) ScheduledAlarms(c *gin.Context) {
	hour, ok := queryInt(c, "utcHour", 0, 23)
	if !ok {
		return
	}
	minute, ok := queryInt(c, "utcMinute", 0, 59)
	if !ok {
		return
	}

	day := nearestDay(h.clock.Now(), hour, minute)
	due, err := h.finder.FindDueAlarms(c.Request.Context(), hour, minute, day)
	if err != nil {
		h.log.Error("[API] find due alarms failed",
			zap.Int("utc_hour", hour),
			zap.Int("utc_minute", minute),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load scheduled alarms"})
		return
	}
	if due == nil {
		due = []schedule.DueAlarm{}
	}
	c.JSON(http.StatusOK, due)
}

// queryInt 解析必填整数参数, 失败时已写入 400
func queryInt(c *gin.Context, name string, lo, hi int) (int, bool) {
	raw, ok := c.GetQuery(name)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " is required"})
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < lo || v > hi {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be an integer between " + strconv.Itoa(lo) + " and " + strconv.Itoa(hi)})
		return 0, false
	}
	return v, true
}

// nearestDay hh:mm 在 now 前后 12 小时内的那一次所在的 UTC 星期
func nearestDay(now time.Time, hour, minute int) time.Weekday {
	now = now.UTC()
	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
	switch diff := candidate.Sub(now); {
	case diff > 12*time.Hour:
		candidate = candidate.AddDate(0, 0, -1)
	case diff <= -12*time.Hour:
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate.Weekday()
}
