// Package gateway serves the REST operations that sign and submit ledger
// extrinsics on behalf of authenticated users.
package gateway

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/JonathanJFlores/sugarfunge-api/internal/chain"
	"github.com/JonathanJFlores/sugarfunge-api/internal/identity"
	"github.com/JonathanJFlores/sugarfunge-api/internal/logging"
	"github.com/JonathanJFlores/sugarfunge-api/internal/metrics"
	"github.com/JonathanJFlores/sugarfunge-api/services/common/service"
	"github.com/JonathanJFlores/sugarfunge-api/services/gateway/store"
)

const (
	ServiceName = "sugarfunge-gateway"
	Version     = "1.0.0"
)

// AuditStore records submissions. *store.Repository implements it.
type AuditStore interface {
	Create(ctx context.Context, rec *store.Record) error
	Complete(ctx context.Context, requestID string, c store.Completion) error
	Get(ctx context.Context, requestID string) (*store.Record, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]store.Record, error)
	Ping(ctx context.Context) error
}

// Options wires the service's collaborators.
type Options struct {
	Client   *chain.Client
	Pipeline *chain.Pipeline
	Seeds    identity.SeedStore
	// Audit is optional.
	Audit   AuditStore
	Metrics *metrics.Metrics
	Logger  *logging.Logger
	Router  *mux.Router

	SS58Prefix      uint16
	AllowInlineSeed bool
}

// Service owns the gateway routes.
type Service struct {
	*service.BaseService

	client   *chain.Client
	pipeline *chain.Pipeline
	seeds    identity.SeedStore
	audit    AuditStore
	metrics  *metrics.Metrics
	logger   *logging.Logger

	prefix          uint16
	allowInlineSeed bool
}

// New creates the service and registers its routes.
func New(opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = logging.NewDiscard()
	}

	s := &Service{
		BaseService: service.NewBase(service.BaseConfig{
			Name:    ServiceName,
			Version: Version,
			Logger:  opts.Logger,
			Router:  opts.Router,
		}),
		client:          opts.Client,
		pipeline:        opts.Pipeline,
		seeds:           opts.Seeds,
		audit:           opts.Audit,
		metrics:         opts.Metrics,
		logger:          opts.Logger,
		prefix:          opts.SS58Prefix,
		allowInlineSeed: opts.AllowInlineSeed,
	}
	if s.metrics != nil && s.pipeline != nil {
		s.pipeline.Recorder = s.metrics
	}

	s.AddProbe("ledger", true, s.client.Ping)
	if s.audit != nil {
		s.AddProbe("audit", false, s.audit.Ping)
	}
	s.WithStats(s.stats)

	var metricsHandler http.Handler
	if s.metrics != nil {
		metricsHandler = s.metrics.Handler()
	}
	s.RegisterStandardRoutes(metricsHandler)
	s.registerRoutes()
	return s
}

func (s *Service) registerRoutes() {
	r := s.Router()
	for path, h := range operationRoutes(s) {
		r.HandleFunc(path, h).Methods(http.MethodPost)
	}

	r.HandleFunc("/account/create", s.handleCreateAccount).Methods(http.MethodPost)
	r.HandleFunc("/account/balance", s.handleBalance).Methods(http.MethodPost)
	r.HandleFunc("/asset/balance", s.handleAssetBalance).Methods(http.MethodPost)
	r.HandleFunc("/currency/issuance", s.handleCurrencyIssuance).Methods(http.MethodPost)
	r.HandleFunc("/currency/supply", s.handleCurrencySupply).Methods(http.MethodPost)
	r.HandleFunc("/account/transfer", s.handleTransferSeed).Methods(http.MethodPost)
	r.HandleFunc("/user/verify_seed", s.handleVerifySeed).Methods(http.MethodGet)
	r.HandleFunc("/tx", s.handleListSubmissions).Methods(http.MethodGet)
	r.HandleFunc("/tx/{request_id}", s.handleGetSubmission).Methods(http.MethodGet)
}

// ScheduleJobs registers the background jobs on their cron specs. An empty
// spec skips the job.
func (s *Service) ScheduleJobs(metadataRefresh, healthCheck string) error {
	if metadataRefresh != "" {
		if err := s.Schedule("metadata_refresh", metadataRefresh, s.refreshMetadata); err != nil {
			return err
		}
	}
	if healthCheck != "" {
		if err := s.Schedule("ledger_health", healthCheck, s.checkLedger); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) refreshMetadata(ctx context.Context) error {
	err := s.client.Refresh(ctx)
	if s.metrics != nil {
		s.metrics.RecordRefresh(err == nil)
	}
	return err
}

func (s *Service) checkLedger(ctx context.Context) error {
	err := s.client.Ping(ctx)
	if s.metrics != nil {
		s.metrics.SetLedgerUp(err == nil)
	}
	return err
}

func (s *Service) stats() map[string]any {
	return map[string]any{
		"submission_in_progress": s.client.Busy(),
		"ss58_prefix":            s.prefix,
		"audit_enabled":          s.audit != nil,
		"inline_seed_allowed":    s.allowInlineSeed,
	}
}

// account renders an id in the configured network format.
func (s *Service) account(id chain.AccountID) string {
	return chain.EncodeAccount(id, s.prefix)
}
