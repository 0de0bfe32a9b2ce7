package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/refurbd/ctoengine/audit"
	"github.com/refurbd/ctoengine/config"
	"github.com/refurbd/ctoengine/configurator"
	"github.com/refurbd/ctoengine/cto"
	"github.com/refurbd/ctoengine/internal/logger"
	"github.com/refurbd/ctoengine/pricing"
	"github.com/refurbd/ctoengine/rules"
	"github.com/refurbd/ctoengine/ruleset"
)

type Server struct {
	db       *sql.DB
	service  *configurator.Service
	rulesets ruleset.Store
	router   *chi.Mux
}

func NewServer(cfg *config.Config) (*Server, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	margin, err := cfg.MarginPercent()
	if err != nil {
		return nil, err
	}
	labor, err := cfg.LaborCost()
	if err != nil {
		return nil, err
	}

	versions := rules.NewPostgresVersionStore(db)
	rulesets := ruleset.NewPostgresStore(db)
	configs := configurator.NewPostgresConfigurationStore(db)
	audits := audit.NewPostgresStore(db)
	engine := rules.NewEngine(versions)

	pricer := pricing.NewCalculator(rulesets, pricing.Defaults{
		LaborCost:     labor,
		MarginPercent: margin,
		Currency:      cfg.Pricing.Currency,
	})
	leadTimes := pricing.NewLeadTimeCalculator(rulesets, pricing.LeadTimeDefaults{
		ComponentMinutes:   cfg.LeadTime.ComponentMinutes,
		QAMinutes:          cfg.LeadTime.QAMinutes,
		WorkingHoursPerDay: cfg.LeadTime.WorkingHoursPerDay,
	})

	assets := configurator.NewHTTPAssetClient(cfg.AssetAPI.BaseURL, cfg.AssetAPI.Timeout)

	service := configurator.NewService(assets, configs, rulesets, versions, engine, audits, pricer, leadTimes)

	s := &Server{
		db:       db,
		service:  service,
		rulesets: rulesets,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/api/v1/health", s.handleHealth)
	r.Get("/api/v1/metrics", s.handleMetrics)

	r.Post("/api/v1/validate", s.handleValidate)
	r.Post("/api/v1/simulate", s.handleSimulate)

	r.Route("/api/v1/configurations", func(r chi.Router) {
		r.Post("/", s.handleCreateConfiguration)

		r.Route("/{configId}", func(r chi.Router) {
			r.Get("/", s.handleGetConfiguration)
			r.Post("/snapshot", s.handleFreezeSnapshot)
			r.Get("/snapshot", s.handleGetSnapshot)
			r.Post("/evaluate", s.handleEvaluateAndRecord)
			r.Get("/audit", s.handleGetAudit)
			r.Post("/simulate", s.handleSimulate)
		})
	})

	r.Route("/api/v1/rules/{ruleId}/versions", func(r chi.Router) {
		r.Post("/", s.handleCreateRuleVersion)
		r.Get("/", s.handleRuleHistory)
		r.Get("/latest", s.handleLatestRuleVersion)
	})

	r.Route("/api/v1/rulesets", func(r chi.Router) {
		r.Post("/", s.handleCreateRuleSet)
		r.Get("/active", s.handleActiveRuleSet)
		r.Get("/{ruleSetId}", s.handleGetRuleSet)
		r.Post("/{ruleSetId}/activate", s.handleActivateRuleSet)
	})

	r.Post("/api/v1/decisions", s.handleRecordDecision)

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]int64{
		"validations": logger.TotalValidations.Load(),
		"rejections":  logger.TotalRejections.Load(),
		"simulations": logger.TotalSimulations.Load(),
		"decisions":   logger.TotalDecisions.Load(),
		"errors":      logger.TotalErrors.Load(),
		"warnings":    logger.TotalWarnings.Load(),
		"http5xx":     logger.Total5xxErrors.Load(),
		"http4xx":     logger.Total4xxErrors.Load(),
	})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.AssetID == "" {
		respondError(w, http.StatusBadRequest, "assetId is required", nil)
		return
	}

	start := time.Now()
	outcome, err := s.service.Validate(r.Context(), req.AssetID, req.Components)
	if err != nil {
		respondDomainError(w, "validation failed", err)
		return
	}

	logger.TotalValidations.Add(1)
	if !outcome.Valid {
		logger.TotalRejections.Add(1)
	}
	logger.Info("configuration validated",
		"assetId", req.AssetID,
		"valid", outcome.Valid,
		"errors", len(outcome.Errors),
		"durationMs", time.Since(start).Milliseconds())

	respondJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleCreateConfiguration(w http.ResponseWriter, r *http.Request) {
	var req createConfigurationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.AssetID == "" {
		respondError(w, http.StatusBadRequest, "assetId is required", nil)
		return
	}

	cfg, err := s.service.CreateConfiguration(r.Context(), req.AssetID, req.Components)
	if err != nil {
		respondDomainError(w, "failed to create configuration", err)
		return
	}
	respondJSON(w, http.StatusCreated, cfg)
}

func (s *Server) handleGetConfiguration(w http.ResponseWriter, r *http.Request) {
	configID := chi.URLParam(r, "configId")

	components, err := s.service.Components(configID)
	if err != nil {
		respondError(w, http.StatusNotFound, "configuration not found", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"id":         configID,
		"components": components,
	})
}

func (s *Server) handleFreezeSnapshot(w http.ResponseWriter, r *http.Request) {
	configID := chi.URLParam(r, "configId")

	snap, err := s.service.FreezeSnapshot(configID)
	if err != nil {
		respondDomainError(w, "failed to freeze snapshot", err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	configID := chi.URLParam(r, "configId")

	snap, err := s.service.Snapshot(configID)
	if err != nil {
		respondError(w, http.StatusNotFound, "configuration not found", err)
		return
	}
	if snap == nil {
		respondError(w, http.StatusNotFound, "no frozen snapshot", nil)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleEvaluateAndRecord(w http.ResponseWriter, r *http.Request) {
	configID := chi.URLParam(r, "configId")

	configAudit, err := s.service.EvaluateAndRecord(configID)
	if err != nil {
		respondDomainError(w, "evaluation failed", err)
		return
	}

	logger.TotalDecisions.Add(int64(len(configAudit.Decisions)))
	if configAudit.OverallResult == audit.ResultReject {
		logger.TotalRejections.Add(1)
	}

	respondJSON(w, http.StatusCreated, configAudit)
}

func (s *Server) handleGetAudit(w http.ResponseWriter, r *http.Request) {
	configID := chi.URLParam(r, "configId")

	configAudit, err := s.service.GetConfigurationAudit(configID)
	if err != nil {
		respondDomainError(w, "failed to load audit", err)
		return
	}
	respondJSON(w, http.StatusOK, configAudit)
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	// The route parameter wins when the simulation is nested under a
	// configuration; the standalone route leaves it empty.
	configID := req.ConfigurationID
	if p := chi.URLParam(r, "configId"); p != "" {
		configID = p
	}

	result, err := s.service.Simulate(configID, req.Components)
	if err != nil {
		respondDomainError(w, "simulation failed", err)
		return
	}

	logger.TotalSimulations.Add(1)
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleCreateRuleVersion(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "ruleId")

	var req createRuleVersionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	rv, err := s.service.CreateRuleVersion(ruleID, req.Name, req.Description, req.Logic)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid rule", err)
		return
	}
	respondJSON(w, http.StatusCreated, rv)
}

func (s *Server) handleRuleHistory(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "ruleId")

	history, err := s.service.RuleHistory(ruleID)
	if err != nil {
		respondDomainError(w, "failed to load rule history", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"versions": history})
}

func (s *Server) handleLatestRuleVersion(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "ruleId")

	rv, err := s.service.LatestRuleVersion(ruleID)
	if err != nil {
		respondDomainError(w, "failed to load rule version", err)
		return
	}
	respondJSON(w, http.StatusOK, rv)
}

func (s *Server) handleCreateRuleSet(w http.ResponseWriter, r *http.Request) {
	var req createRuleSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	rs := &ruleset.RuleSet{
		ID:      uuid.New().String(),
		Name:    req.Name,
		Version: req.Version,
		Active:  req.Activate,
		Rules:   req.Rules,
	}
	if err := s.rulesets.Save(rs); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to save rule set", err)
		return
	}
	respondJSON(w, http.StatusCreated, rs)
}

func (s *Server) handleActiveRuleSet(w http.ResponseWriter, r *http.Request) {
	rs, err := s.rulesets.ActiveRuleSet()
	if err != nil {
		respondDomainError(w, "failed to load active rule set", err)
		return
	}
	respondJSON(w, http.StatusOK, rs)
}

func (s *Server) handleGetRuleSet(w http.ResponseWriter, r *http.Request) {
	ruleSetID := chi.URLParam(r, "ruleSetId")

	rs, err := s.rulesets.Get(ruleSetID)
	if err != nil {
		respondError(w, http.StatusNotFound, "rule set not found", err)
		return
	}
	respondJSON(w, http.StatusOK, rs)
}

func (s *Server) handleActivateRuleSet(w http.ResponseWriter, r *http.Request) {
	ruleSetID := chi.URLParam(r, "ruleSetId")

	if err := s.rulesets.Activate(ruleSetID); err != nil {
		respondError(w, http.StatusNotFound, "failed to activate rule set", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRecordDecision(w http.ResponseWriter, r *http.Request) {
	var req recordDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.ConfigurationID == "" || req.RuleVersionID == "" {
		respondError(w, http.StatusBadRequest, "configurationId and ruleVersionId are required", nil)
		return
	}

	decision, err := s.service.RecordDecision(req.ConfigurationID, req.RuleVersionID, req.Result, req.Explanations)
	if err != nil {
		respondDomainError(w, "failed to record decision", err)
		return
	}

	logger.TotalDecisions.Add(1)
	respondJSON(w, http.StatusCreated, decision)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
	logger.CountHTTPStatus(status)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]string{
		"error": message,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	respondJSON(w, status, response)
}

// respondDomainError maps sentinel errors to HTTP statuses.
func respondDomainError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, cto.ErrInvalidSimulation):
		status = http.StatusBadRequest
	case errors.Is(err, cto.ErrRuleNotFound),
		errors.Is(err, cto.ErrRuleVersionNotFound),
		errors.Is(err, cto.ErrAuditNotAvailable):
		status = http.StatusNotFound
	case errors.Is(err, cto.ErrAssetNotSellable),
		errors.Is(err, cto.ErrNoActiveRuleSet),
		errors.Is(err, cto.ErrAlreadyEvaluated):
		status = http.StatusConflict
	case errors.Is(err, cto.ErrAssetLookupFailed):
		status = http.StatusBadGateway
	}

	if status >= 500 {
		logger.Error(message, "error", err)
	}
	respondError(w, status, message, err)
}

func main() {
	cfg, err := config.Load(os.Getenv("CTOENGINE_CONFIG"))
	if err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}
	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is required")
	}

	server, err := NewServer(cfg)
	if err != nil {
		logger.Fatal("failed to create server", "error", err)
	}
	defer server.db.Close()

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := logger.Shutdown(ctx); err != nil {
		logger.Error("logger shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
