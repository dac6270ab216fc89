package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/soundmesh/resolver_pipeline/internal/api"
	"github.com/soundmesh/resolver_pipeline/internal/health"
	"github.com/soundmesh/resolver_pipeline/obs"
	"github.com/soundmesh/resolver_pipeline/pipeline"
	"github.com/soundmesh/resolver_pipeline/policy"
	"github.com/soundmesh/resolver_pipeline/resolver"
	"github.com/soundmesh/resolver_pipeline/sources"
)

const (
	defaultPort      = 7080
	defaultTimeoutMs = 2000
	defaultRetryMax  = 2
)

func main() {
	cfg := loadConfig()

	shutdown, err := obs.InitTracer("resolver-pipeline")
	if err != nil {
		log.Printf("obs: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			log.Printf("tracer shutdown error: %v", err)
		}
	}()

	registry := resolver.NewRegistry()
	sink := api.NewBroadcast()

	pipe, err := pipeline.New(pipeline.Config{
		Registry:      registry,
		Sink:          sink,
		MaxConcurrent: cfg.MaxConcurrent,
	})
	if err != nil {
		log.Fatalf("pipeline: %v", err)
	}

	library, err := sources.NewLibrary(sources.LibraryConfig{
		ID:           "library",
		Weight:       cfg.LibraryWeight,
		Path:         cfg.LibraryPath,
		QueryTimeout: cfg.Timeout,
	}, pipe)
	if err != nil {
		log.Fatalf("library: %v", err)
	}
	defer library.Close()
	registry.Register(library)

	if cfg.ScriptURL != "" {
		script, err := sources.NewScript(sources.ScriptConfig{
			ID:       "script",
			Weight:   cfg.ScriptWeight,
			BaseURL:  cfg.ScriptURL,
			RetryMax: cfg.RetryMax,
			Timeout:  cfg.Timeout,
			Rate: policy.RateLimitConfig{
				Capacity:     cfg.RateCapacity,
				RefillTokens: cfg.RateRefill,
				RefillEvery:  cfg.RateInterval,
			},
			Circuit: policy.CircuitBreakerConfig{
				Window:               cfg.CircuitWindow,
				FailureRateThreshold: cfg.CircuitThreshold,
				MinSamples:           cfg.CircuitMinSamples,
				Cooldown:             cfg.CircuitCooldown,
				HalfOpenMaxCalls:     cfg.CircuitHalfOpenMax,
			},
		}, newHTTPClient(cfg.Timeout), pipe)
		if err != nil {
			log.Fatalf("script: %v", err)
		}
		registry.Register(script)
	}

	events, cancelEvents := sink.Subscribe()
	defer cancelEvents()
	go func() {
		for e := range events {
			log.Printf("results reported for request %s", e.RequestID)
		}
	}()

	router, err := api.NewRouter(pipe, registry)
	if err != nil {
		log.Fatalf("router: %v", err)
	}
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/readyz", health.Readyz(registry))

	root := chi.NewRouter()
	root.Mount("/", router)

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("resolver pipeline listening on :%d", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

type config struct {
	Port               int
	MaxConcurrent      int
	LibraryPath        string
	LibraryWeight      int
	ScriptURL          string
	ScriptWeight       int
	Timeout            time.Duration
	RetryMax           int
	RateCapacity       int
	RateRefill         int
	RateInterval       time.Duration
	CircuitWindow      time.Duration
	CircuitThreshold   float64
	CircuitMinSamples  int
	CircuitCooldown    time.Duration
	CircuitHalfOpenMax int
}

func loadConfig() config {
	return config{
		Port:               getEnvInt("PORT", defaultPort),
		MaxConcurrent:      getEnvInt("MAX_CONCURRENT", 0),
		LibraryPath:        getEnvStr("LIBRARY_PATH", "library.db"),
		LibraryWeight:      getEnvInt("LIBRARY_WEIGHT", 100),
		ScriptURL:          getEnvStr("SCRIPT_URL", ""),
		ScriptWeight:       getEnvInt("SCRIPT_WEIGHT", 50),
		Timeout:            time.Duration(getEnvInt("TIMEOUT_MS", defaultTimeoutMs)) * time.Millisecond,
		RetryMax:           getEnvInt("RETRY_MAX", defaultRetryMax),
		RateCapacity:       getEnvInt("SOURCE_RATE_CAPACITY", 50),
		RateRefill:         getEnvInt("SOURCE_RATE_REFILL", 10),
		RateInterval:       time.Duration(getEnvInt("SOURCE_RATE_INTERVAL_MS", 1000)) * time.Millisecond,
		CircuitWindow:      time.Duration(getEnvInt("CIRCUIT_WINDOW_MS", 30000)) * time.Millisecond,
		CircuitThreshold:   getEnvFloat("CIRCUIT_THRESHOLD", 0.5),
		CircuitMinSamples:  getEnvInt("CIRCUIT_MIN_SAMPLES", 5),
		CircuitCooldown:    time.Duration(getEnvInt("CIRCUIT_COOLDOWN_MS", 5000)) * time.Millisecond,
		CircuitHalfOpenMax: getEnvInt("CIRCUIT_HALF_OPEN_MAX", 1),
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		MaxConnsPerHost:     128,
		MaxIdleConns:        256,
		MaxIdleConnsPerHost: 128,
		IdleConnTimeout:     90 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

func getEnvStr(key string, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}
