package api

import (
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/powerconcept/conciliador/internal/security"
	"github.com/powerconcept/conciliador/internal/snapshot"
	"github.com/powerconcept/conciliador/pkg/audit"
)

type Auditor interface {
	Append(payload string) *audit.LogEntry
}

type Dependencies struct {
	Logger *slog.Logger
	Store  snapshot.Store

	DateToleranceDays int

	Auditor      Auditor
	RateLimiter  *security.RedisTokenBucket
	IPAllowlist  []*net.IPNet
	MaxBodyBytes int64
}

func NewRouter(deps Dependencies) (http.Handler, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	saveImportV, err := security.NewJSONSchemaValidator(saveImportSchema)
	if err != nil {
		return nil, err
	}
	runV, err := security.NewJSONSchemaValidator(runSchema)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(security.CorrelationID)
	r.Use(RequestLogger(deps.Logger))
	r.Use(security.BodySizeLimit(deps.MaxBodyBytes))
	r.Use(security.IPAllowlist(deps.IPAllowlist))
	if deps.RateLimiter != nil {
		r.Use(security.RateLimitMiddleware(deps.RateLimiter, rateLimitKeyByIP))
	}
	if deps.Auditor != nil {
		r.Use(AuditMiddleware(deps.Auditor))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Route("/importacoes", func(r chi.Router) {
			r.Get("/", handleListImports(deps))
			r.With(saveImportV.Middleware).Post("/", handleSaveImport(deps))
			r.Delete("/{tipo}/{periodo}", handleDeleteImport(deps))
		})

		r.Route("/conciliacoes", func(r chi.Router) {
			r.With(runV.Middleware).Post("/executar", handleRun(deps))
			r.Get("/{periodo}", handleGetResult(deps))
			r.Post("/{periodo}/invalidar", handleInvalidateResult(deps))
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		security.WriteJSONError(w, r, http.StatusNotFound, "not_found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		security.WriteJSONError(w, r, http.StatusMethodNotAllowed, "method_not_allowed")
	})

	return r, nil
}

func rateLimitKeyByIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return ""
	}
	return "ip:" + host
}
