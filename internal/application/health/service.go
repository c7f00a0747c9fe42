package health

import (
	"context"
	"encoding/json"
	"runtime"
	"strconv"
	"time"

	"auction-backend/internal/domain"
	"auction-backend/internal/middleware"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ConnStatus is satisfied by *nats.Conn.
type ConnStatus interface {
	IsConnected() bool
}

// Deps are the dependencies probed by CollectHealth. Nil members report as disconnected.
type Deps struct {
	DB   *gorm.DB
	Rdb  *redis.Client
	NATS ConnStatus
}

type CollectResult struct {
	Status       string               `json:"status"`
	Runtime      RuntimeInfo          `json:"runtime"`
	Traffic      TrafficInfo          `json:"traffic"`
	Outbox       OutboxInfo           `json:"outbox"`
	Dependencies map[string]DepStatus `json:"dependencies"`
}

type RuntimeInfo struct {
	UptimeSeconds int64  `json:"uptimeSeconds"`
	HeapMB        int    `json:"heapMb"`
	Goroutines    int    `json:"goroutines"`
	Platform      string `json:"platform"`
	GoVersion     string `json:"goVersion"`
}

type TrafficInfo struct {
	TotalRequests   int         `json:"totalRequests"`
	SuccessCount    int         `json:"successCount"`
	RejectedCount   int         `json:"rejectedCount"`
	FailedCount     int         `json:"failedCount"`
	SuccessRate     string      `json:"successRate"`
	AvgResponseTime interface{} `json:"avgResponseTime"`
	LastRequest     interface{} `json:"lastRequest"`
}

// OutboxInfo reports events committed but not yet relayed.
type OutboxInfo struct {
	Pending      int64      `json:"pending"`
	OldestUnsent *time.Time `json:"oldestUnsent"`
}

type DepStatus struct {
	Status string      `json:"status"`
	PingMs interface{} `json:"pingMs"`
}

// CollectHealth gathers dependency status, request stats from Redis and the outbox backlog.
// Status is "ok" only when the database and Redis both answer.
func CollectHealth(ctx context.Context, deps Deps) CollectResult {
	result := CollectResult{Dependencies: make(map[string]DepStatus)}

	dbStatus := "disconnected"
	var dbPingMs *int64
	if deps.DB != nil {
		start := time.Now()
		if err := pingDB(ctx, deps.DB); err == nil {
			ms := time.Since(start).Milliseconds()
			dbPingMs = &ms
			dbStatus = "connected"
			result.Outbox = outbox(ctx, deps.DB)
		} else {
			dbStatus = "error"
		}
	}
	result.Dependencies["database"] = DepStatus{Status: dbStatus, PingMs: dbPingMs}

	redisStatus := "disconnected"
	var redisPingMs *int64
	stats := TrafficInfo{AvgResponseTime: 0, SuccessRate: "100"}
	startTimeMs := time.Now().UnixMilli()
	if deps.Rdb != nil {
		start := time.Now()
		if err := deps.Rdb.Ping(ctx).Err(); err == nil {
			ms := time.Since(start).Milliseconds()
			redisPingMs = &ms
			redisStatus = "connected"
			startTimeMs = traffic(ctx, deps.Rdb, &stats, startTimeMs)
		} else {
			redisStatus = "error"
		}
	}
	result.Dependencies["redis"] = DepStatus{Status: redisStatus, PingMs: redisPingMs}

	natsStatus := "disconnected"
	if deps.NATS != nil && deps.NATS.IsConnected() {
		natsStatus = "connected"
	}
	result.Dependencies["nats"] = DepStatus{Status: natsStatus}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	uptimeSec := (time.Now().UnixMilli() - startTimeMs) / 1000
	if uptimeSec < 0 {
		uptimeSec = 0
	}
	result.Runtime = RuntimeInfo{
		UptimeSeconds: uptimeSec,
		HeapMB:        int(m.HeapInuse / 1024 / 1024),
		Goroutines:    runtime.NumGoroutine(),
		Platform:      runtime.GOOS + " (" + runtime.GOARCH + ")",
		GoVersion:     runtime.Version(),
	}
	result.Traffic = stats

	if dbStatus == "connected" && redisStatus == "connected" {
		result.Status = "ok"
	} else {
		result.Status = "issue"
	}
	return result
}

func pingDB(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func outbox(ctx context.Context, db *gorm.DB) OutboxInfo {
	var info OutboxInfo
	q := db.WithContext(ctx).Model(&domain.AuctionEvent{}).Where("dispatched_at IS NULL")
	if err := q.Count(&info.Pending).Error; err != nil || info.Pending == 0 {
		return info
	}
	var oldest domain.AuctionEvent
	if err := db.WithContext(ctx).Where("dispatched_at IS NULL").Order(`"createdAt" ASC`).First(&oldest).Error; err == nil {
		info.OldestUnsent = &oldest.CreatedAt
	}
	return info
}

// traffic fills stats from the HealthMarker counters and returns the recorded start time.
func traffic(ctx context.Context, rdb *redis.Client, stats *TrafficInfo, startTimeMs int64) int64 {
	vals, err := rdb.MGet(ctx,
		middleware.KeyReqTotal, middleware.KeyReqErrors, middleware.KeyReqRejected,
		middleware.KeyResTime, middleware.KeyResCount, middleware.KeyStartTime, middleware.KeyLastReq,
	).Result()
	if err != nil {
		return startTimeMs
	}
	str := func(i int) string {
		s, _ := vals[i].(string)
		return s
	}

	if t, err := strconv.ParseInt(str(5), 10, 64); err == nil {
		startTimeMs = t
	} else {
		rdb.Set(ctx, middleware.KeyStartTime, startTimeMs, 0)
	}

	stats.TotalRequests, _ = strconv.Atoi(str(0))
	stats.FailedCount, _ = strconv.Atoi(str(1))
	stats.RejectedCount, _ = strconv.Atoi(str(2))
	stats.SuccessCount = stats.TotalRequests - stats.FailedCount - stats.RejectedCount
	if stats.TotalRequests > 0 {
		stats.SuccessRate = strconv.FormatFloat(float64(stats.SuccessCount)/float64(stats.TotalRequests)*100, 'f', 1, 64)
	}
	timeSum, _ := strconv.ParseFloat(str(3), 64)
	countSum, _ := strconv.Atoi(str(4))
	if countSum > 0 {
		stats.AvgResponseTime = strconv.FormatFloat(timeSum/float64(countSum), 'f', 2, 64)
	}
	if s := str(6); s != "" {
		var lastReq map[string]interface{}
		_ = json.Unmarshal([]byte(s), &lastReq)
		stats.LastRequest = lastReq
	}
	return startTimeMs
}
