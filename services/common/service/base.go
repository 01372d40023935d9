package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"

	"github.com/JonathanJFlores/sugarfunge-api/internal/logging"
)

const healthCheckTimeout = 5 * time.Second

// Probe checks one dependency. A nil error means healthy.
type Probe func(ctx context.Context) error

// BaseConfig contains shared configuration for a service.
type BaseConfig struct {
	Name    string
	Version string
	Logger  *logging.Logger
	Router  *mux.Router
}

// BaseService carries the router, scheduled jobs and health probes shared
// by every HTTP service in this module.
type BaseService struct {
	name    string
	version string
	logger  *logging.Logger
	router  *mux.Router

	scheduler *cron.Cron
	jobs      []string

	stopOnce sync.Once
	statsFn  func() map[string]any

	probes   map[string]Probe
	critical map[string]bool

	healthMu        sync.RWMutex
	results         map[string]error
	lastHealthCheck time.Time
	startTime       time.Time
}

// NewBase constructs a BaseService from shared config.
func NewBase(cfg BaseConfig) *BaseService {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewDiscard()
	}
	if cfg.Router == nil {
		cfg.Router = mux.NewRouter()
	}
	return &BaseService{
		name:      cfg.Name,
		version:   cfg.Version,
		logger:    cfg.Logger,
		router:    cfg.Router,
		scheduler: cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		probes:    make(map[string]Probe),
		critical:  make(map[string]bool),
		results:   make(map[string]error),
	}
}

// Name returns the service name.
func (b *BaseService) Name() string { return b.name }

// Version returns the service version.
func (b *BaseService) Version() string { return b.version }

// Router returns the service router.
func (b *BaseService) Router() *mux.Router { return b.router }

// Logger returns the service logger.
func (b *BaseService) Logger() *logging.Logger { return b.logger }

// WithStats sets a statistics provider function for the /info endpoint.
func (b *BaseService) WithStats(fn func() map[string]any) *BaseService {
	b.statsFn = fn
	return b
}

// AddProbe registers a health probe. A failing critical probe makes the
// service unhealthy; any other failing probe makes it degraded.
func (b *BaseService) AddProbe(name string, critical bool, probe Probe) *BaseService {
	b.probes[name] = probe
	b.critical[name] = critical
	return b
}

// Schedule registers a job on a cron spec such as "@every 30s". Jobs run
// in the background after Start and never overlap with themselves.
func (b *BaseService) Schedule(name, spec string, fn func(context.Context) error) error {
	_, err := b.scheduler.AddFunc(spec, func() {
		ctx := logging.WithTraceID(context.Background(), logging.NewTraceID())
		if err := fn(ctx); err != nil {
			b.logger.Error(ctx, "Scheduled job failed", err, map[string]interface{}{"job": name})
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	b.jobs = append(b.jobs, name)
	return nil
}

// JobCount returns the number of scheduled jobs.
func (b *BaseService) JobCount() int {
	return len(b.jobs)
}

// Start records the start time and launches the scheduler.
func (b *BaseService) Start(ctx context.Context) error {
	b.healthMu.Lock()
	if b.startTime.IsZero() {
		b.startTime = time.Now()
	}
	b.healthMu.Unlock()

	b.scheduler.Start()
	b.logger.Info(ctx, "Service started", map[string]interface{}{
		"service": b.name,
		"version": b.version,
		"jobs":    b.jobs,
	})
	return nil
}

// Stop halts the scheduler and waits for running jobs until ctx ends.
// Calling it more than once is safe.
func (b *BaseService) Stop(ctx context.Context) error {
	var err error
	b.stopOnce.Do(func() {
		select {
		case <-b.scheduler.Stop().Done():
		case <-ctx.Done():
			err = fmt.Errorf("stop %s: %w", b.name, ctx.Err())
		}
	})
	return err
}

// CheckHealth runs every probe and caches the results.
func (b *BaseService) CheckHealth(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	results := make(map[string]error, len(b.probes))
	for name, probe := range b.probes {
		results[name] = probe(ctx)
	}

	b.healthMu.Lock()
	b.results = results
	b.lastHealthCheck = time.Now()
	b.healthMu.Unlock()
}

// HealthStatus returns "healthy", "degraded" or "unhealthy" from the most
// recent probe results.
func (b *BaseService) HealthStatus() string {
	b.healthMu.RLock()
	defer b.healthMu.RUnlock()

	status := "healthy"
	for name, err := range b.results {
		if err == nil {
			continue
		}
		if b.critical[name] {
			return "unhealthy"
		}
		status = "degraded"
	}
	return status
}

// HealthDetails returns a map describing the most recent health state.
func (b *BaseService) HealthDetails() map[string]any {
	b.healthMu.RLock()
	defer b.healthMu.RUnlock()

	names := make([]string, 0, len(b.results))
	for name := range b.results {
		names = append(names, name)
	}
	sort.Strings(names)

	checks := make(map[string]string, len(names))
	for _, name := range names {
		if err := b.results[name]; err != nil {
			checks[name] = err.Error()
		} else {
			checks[name] = "ok"
		}
	}

	details := map[string]any{"checks": checks}
	if !b.lastHealthCheck.IsZero() {
		details["last_check"] = b.lastHealthCheck.Format(time.RFC3339)
	} else {
		details["last_check"] = ""
	}

	uptime := time.Duration(0)
	if !b.startTime.IsZero() {
		uptime = time.Since(b.startTime)
	}
	details["uptime"] = uptime.String()

	return details
}
