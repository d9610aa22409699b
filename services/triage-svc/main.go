package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/haresh-sai06/rapid100/pkg/common"
)

type Config struct {
	Port        string
	DatabaseURL string

	Backend       string
	LLMHost       string
	LLMModel      string
	LLMTimeout    time.Duration
	HTTPDeadline  time.Duration
	SpeechTimeout int
	MinConfidence float64
	Thresholds    common.SeverityThresholds
	SessionTTL    time.Duration

	BroadcastEnabled bool
	RedisAddr        string
	KafkaBrokers     []string
	KafkaTopic       string
}

func loadConfig() Config {
	thresholds, err := common.ParseSeverityThresholds(common.GetenvOrDefault("SEVERITY_THRESHOLDS", "80,60,40,0"))
	if err != nil {
		slog.Error("invalid SEVERITY_THRESHOLDS, using defaults", "error", err)
		thresholds = common.DefaultSeverityThresholds
	}

	return Config{
		Port:        common.GetenvOrDefault("HTTP_PORT", "8080"),
		DatabaseURL: common.RequireEnv("DB_URL"),

		Backend:       common.GetenvOrDefault("BACKEND", "hybrid"),
		LLMHost:       common.GetenvOrDefault("LLM_HOST", "http://localhost:11434"),
		LLMModel:      common.GetenvOrDefault("LLM_MODEL", "qwen2.5:0.5b"),
		LLMTimeout:    time.Millisecond * time.Duration(common.GetenvOrDefaultInt("D_LLM_MS", "3000")),
		HTTPDeadline:  time.Millisecond * time.Duration(common.GetenvOrDefaultInt("D_HTTP_MS", "4000")),
		SpeechTimeout: common.GetenvOrDefaultInt("SPEECH_TIMEOUT_S", "5"),
		MinConfidence: common.GetenvOrDefaultFloat("MIN_CONFIDENCE", "0.7"),
		Thresholds:    thresholds,
		SessionTTL:    time.Second * time.Duration(common.GetenvOrDefaultInt("SESSION_TTL_S", "600")),

		BroadcastEnabled: common.GetenvOrDefaultBool("BROADCAST_ENABLED", "true"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		KafkaBrokers:     common.SplitCommaSeparated(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:       os.Getenv("KAFKA_TOPIC"),
	}
}

// Server state
type Server struct {
	cfg      Config
	ready    atomic.Bool
	store    *Store
	sessions *SessionManager
	hub      *Hub
	exporter *EventExporter
	cache    *redis.Client
}

func main() {
	logLevel := common.InitSlog()

	s := &Server{
		cfg: loadConfig(),
	}

	db, err := common.ConnectPGXPoolWithRetry(context.Background(), s.cfg.DatabaseURL, logLevel, 10, 3*time.Second)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := runMigrations(db); err != nil {
		slog.Error("failed to run database migrations", "error", err)
		os.Exit(1)
	}
	sqlDB := stdlib.OpenDBFromPool(db)
	prometheus.MustRegister(collectors.NewDBStatsCollector(sqlDB, "triage_db"))
	defer func() {
		if err := sqlDB.Close(); err != nil {
			slog.Warn("failed to close sql db", "error", err)
		}
	}()

	s.store = NewStore(db, s.cfg.Thresholds)

	if s.cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: s.cfg.RedisAddr})
		defer func() {
			if err := rdb.Close(); err != nil {
				slog.Error("failed to close redis client", "error", err)
			}
		}()
		// The cache is just an optimization; the connection is not
		// verified on startup.
		s.cache = rdb
	}

	prompts, err := NewPromptLibrary(promptsFS)
	if err != nil {
		slog.Error("failed to load prompts", "error", err)
		os.Exit(1)
	}

	var llm *OllamaClient
	if s.cfg.Backend != backendRule {
		llm = NewOllamaClient(s.cfg.LLMHost, s.cfg.LLMModel, s.cfg.LLMTimeout, prompts, s.cfg.Thresholds)
		slog.Info("ollama triage client initialized", "host", s.cfg.LLMHost, "model", s.cfg.LLMModel)
	}
	orch := NewOrchestrator(s.cfg.Backend, llm, s.cfg.Thresholds, s.cfg.MinConfidence)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	if s.cfg.BroadcastEnabled {
		s.hub = NewHub(s.statsPayload)
		go s.hub.Run(rootCtx)
	}

	if len(s.cfg.KafkaBrokers) > 0 && s.cfg.KafkaTopic != "" {
		exporter, err := NewEventExporter(s.cfg.KafkaBrokers, s.cfg.KafkaTopic, logLevel)
		if err != nil {
			slog.Error("failed to create kafka exporter", "error", err)
			os.Exit(1)
		}
		defer exporter.Close()
		s.exporter = exporter

		var kafkaHealthy atomic.Bool
		go exporter.StartHealthCheck(rootCtx, &kafkaHealthy)
	}

	s.sessions = NewSessionManager(orch, s.store, s.hub, s.exporter, s.cfg.SessionTTL, s.cfg.Thresholds)
	go s.sessions.StartSweeper(rootCtx)
	go s.store.StartWriter(rootCtx)

	s.ready.Store(true)

	e := echo.New()
	common.SetupEchoDefaults(e, "triage-svc", s.handleHealth, s.handleReady)

	// Public webhook surface, rate-limited per source address.
	voice := e.Group("/voice")
	voice.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{Rate: rate.Limit(50), Burst: 100, ExpiresIn: 3 * time.Minute},
		),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, nil)
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return c.JSON(http.StatusTooManyRequests, nil)
		},
	}))
	voice.POST("", s.handleVoice)
	voice.POST("/process", s.handleVoiceProcess)
	voice.POST("/followup", s.handleVoiceFollowup)
	voice.POST("/status", s.handleVoiceStatus)

	// Operator API and live channel.
	e.GET("/calls", s.handleListCalls)
	e.GET("/calls/:id", s.handleGetCall)
	e.PUT("/calls/:id", s.handleUpdateCall)
	e.GET("/analytics", s.handleAnalytics)
	if s.hub != nil {
		e.GET("/ws", s.hub.ServeWS)
	}

	echoErrChan := make(chan error, 1)
	go func() {
		slog.Info("starting triage service", "port", s.cfg.Port, "backend", s.cfg.Backend)
		if err := e.Start(":" + s.cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			echoErrChan <- err
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		slog.Info("shutting down")
	case err := <-echoErrChan:
		slog.Error("echo failed to start", "error", err)
		os.Exit(1)
	}

	s.ready.Store(false)
	time.Sleep(5 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		slog.Error("echo shutdown error", "error", err)
	}
	rootCancel()
	slog.Info("shutdown complete")
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func (s *Server) handleReady(c echo.Context) error {
	if !s.ready.Load() {
		return c.String(http.StatusServiceUnavailable, "not ready")
	}

	return c.NoContent(http.StatusOK)
}
