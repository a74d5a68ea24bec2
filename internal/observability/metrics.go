package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	types "github.com/yungbote/amicus-backend/internal/domain"
	"github.com/yungbote/amicus-backend/internal/pkg/logger"
	"github.com/yungbote/amicus-backend/internal/utils"
)

// Metrics is nil when METRICS_ENABLED is off; every method is nil-safe.
type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge

	llmRequests *CounterVec
	llmLatency  *HistogramVec
	llmTokens   *CounterVec

	waveDuration *HistogramVec
	waveTotal    *CounterVec
	jobTotal     *CounterVec

	queueDepth *GaugeVec
	pgStats    *GaugeVec
	redisUp    *Gauge
	redisPing  *Gauge

	all []collector
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled(log *logger.Logger) bool {
	return utils.GetEnvAsBool("METRICS_ENABLED", false, log)
}

func Current() *Metrics {
	return instance
}

// Init builds the process-wide registry once. It returns nil when metrics are disabled.
func Init(log *logger.Logger) *Metrics {
	if !Enabled(log) {
		return nil
	}
	initOnce.Do(func() {
		instance = New()
	})
	return instance
}

// New returns an unregistered Metrics, mainly for tests.
func New() *Metrics {
	m := &Metrics{
		apiRequests: NewCounterVec("amicus_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"amicus_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		),
		apiInflight: NewGauge("amicus_api_inflight_requests", "In-flight API requests."),
		llmRequests: NewCounterVec("amicus_llm_requests_total", "Model calls by provider/model/status.", []string{"provider", "model", "status"}),
		llmLatency: NewHistogramVec(
			"amicus_llm_request_duration_seconds",
			"Model call latency in seconds by provider/model/status.",
			[]string{"provider", "model", "status"},
			[]float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		),
		llmTokens: NewCounterVec("amicus_llm_tokens_total", "Model tokens by provider/model/direction.", []string{"provider", "model", "direction"}),
		waveDuration: NewHistogramVec(
			"amicus_wave_duration_seconds",
			"Brief wave execution time by wave/status.",
			[]string{"wave", "status"},
			[]float64{1, 5, 15, 30, 60, 120, 300, 600},
		),
		waveTotal:  NewCounterVec("amicus_wave_total", "Brief waves by wave/status.", []string{"wave", "status"}),
		jobTotal:   NewCounterVec("amicus_jobs_total", "Job executions by type/status.", []string{"job_type", "status"}),
		queueDepth: NewGaugeVec("amicus_job_queue_depth", "Jobs by status.", []string{"status"}),
		pgStats:    NewGaugeVec("amicus_db_pool", "Database pool statistics.", []string{"stat"}),
		redisUp:    NewGauge("amicus_redis_up", "Redis reachability (1 up, 0 down)."),
		redisPing:  NewGauge("amicus_redis_ping_seconds", "Redis ping latency in seconds."),
	}
	m.all = []collector{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.llmRequests, m.llmLatency, m.llmTokens,
		m.waveDuration, m.waveTotal, m.jobTotal,
		m.queueDepth, m.pgStats, m.redisUp, m.redisPing,
	}
	return m
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", "error", err, "addr", addr)
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, _ *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range m.all {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
}

func (m *Metrics) APIInflight(delta float64) {
	if m == nil {
		return
	}
	m.apiInflight.Add(delta)
}

func (m *Metrics) ObserveLLMRequest(provider, model, status string, dur time.Duration, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	m.llmRequests.Inc(provider, model, status)
	if dur > 0 {
		m.llmLatency.Observe(dur.Seconds(), provider, model, status)
	}
	if inputTokens > 0 {
		m.llmTokens.Add(float64(inputTokens), provider, model, "input")
	}
	if outputTokens > 0 {
		m.llmTokens.Add(float64(outputTokens), provider, model, "output")
	}
}

func (m *Metrics) ObserveWave(wave, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.waveTotal.Inc(wave, status)
	m.waveDuration.Observe(dur.Seconds(), wave, status)
}

func (m *Metrics) IncJob(jobType, status string) {
	if m == nil {
		return
	}
	m.jobTotal.Inc(jobType, status)
}

func scrapeInterval(log *logger.Logger) time.Duration {
	return utils.GetEnvAsSeconds("METRICS_SCRAPE_INTERVAL_SECONDS", 10*time.Second, log)
}

func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval(log)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					log.Warn("metrics: db stats unavailable", "error", err)
					continue
				}
				stats := sqlDB.Stats()
				m.pgStats.Set(float64(stats.OpenConnections), "open_connections")
				m.pgStats.Set(float64(stats.InUse), "in_use")
				m.pgStats.Set(float64(stats.Idle), "idle")
				m.pgStats.Set(float64(stats.WaitCount), "wait_count")
				m.pgStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
			}
		}
	}()
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb *redis.Client) {
	if m == nil || rdb == nil {
		return
	}
	interval := scrapeInterval(log)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					log.Warn("metrics: redis ping failed", "error", err)
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}

// CountJobsByStatus feeds the queue depth gauge. It is satisfied by the job repo.
type CountJobsByStatus func(ctx context.Context, jobType string) (map[string]int64, error)

func (m *Metrics) StartJobQueueCollector(ctx context.Context, log *logger.Logger, count CountJobsByStatus) {
	if m == nil || count == nil {
		return
	}
	interval := scrapeInterval(log)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.recordQueueDepth(ctx, log, count)
			}
		}
	}()
}

func (m *Metrics) recordQueueDepth(ctx context.Context, log *logger.Logger, count CountJobsByStatus) {
	counts, err := count(ctx, "")
	if err != nil {
		log.Warn("metrics: job queue depth query failed", "error", err)
		return
	}
	for _, s := range []string{
		types.JobStatusQueued, types.JobStatusRunning, types.JobStatusSucceeded,
		types.JobStatusFailed, types.JobStatusCanceled,
	} {
		m.queueDepth.Set(float64(counts[s]), s)
	}
}
