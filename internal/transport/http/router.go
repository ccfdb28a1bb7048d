package httptransport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"membership/internal/handler"
	"membership/internal/membership/models"
	"membership/internal/pipeline"
	"membership/internal/platform/middleware"
	dErrors "membership/pkg/domain-errors"
	"membership/pkg/platform/httputil"
)

// maxBodyBytes caps request bodies. Applications are a handful of fields.
const maxBodyBytes = 64 << 10

// Applier runs every onboarding step for one application.
type Applier interface {
	Apply(ctx context.Context, ev handler.Event) handler.Response
}

// MemberReader looks up stored members by id.
type MemberReader interface {
	Get(ctx context.Context, memberID string) (models.Record, error)
}

// Deps are the collaborators served by the router.
type Deps struct {
	Steps    pipeline.Steps
	Apply    Applier
	Members  MemberReader
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger

	// InternalToken is required on the step and member routes.
	InternalToken string
}

// NewRouter wires the endpoints. Only apply, healthz and metrics are public;
// the individual steps and the member lookup need the internal token. Step
// routes are thin adapters: the request body becomes the step's event body
// and the step's response is written back as-is.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, "ok", nil)
	})
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	if d.Apply != nil {
		r.Post("/membership/apply", step(d.Apply.Apply))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireInternalToken(d.InternalToken, logger))
		r.Route("/membership", func(r chi.Router) {
			r.Post("/validate", step(d.Steps.Validate))
			r.Post("/identity", step(d.Steps.ProvisionIdentity))
			r.Post("/members", step(d.Steps.StoreMember))
			r.Post("/notifications", step(d.Steps.SendEmail))
		})
		if d.Members != nil {
			r.Get("/members/{memberID}", getMember(d.Members))
		}
	})
	return r
}

func step(run func(context.Context, handler.Event) handler.Response) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			if errors.As(err, new(*http.MaxBytesError)) {
				w.WriteHeader(http.StatusRequestEntityTooLarge)
				_, _ = w.Write([]byte(`{"success":false,"message":"Request body too large"}`))
				return
			}
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"success":false,"message":"Error reading request body"}`))
			return
		}
		resp := run(r.Context(), handler.Event{Body: string(body)})
		for k, v := range resp.Headers {
			w.Header().Set(k, v)
		}
		w.WriteHeader(resp.StatusCode)
		_, _ = io.WriteString(w, resp.Body)
	}
}

// getMember serves GET /members/{memberID}. The '#' in a member id must be
// sent percent-encoded.
func getMember(members MemberReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := chi.URLParam(r, "memberID")
		// chi matches on RawPath when it is set, leaving the param encoded.
		if r.URL.RawPath != "" {
			decoded, err := url.PathUnescape(raw)
			if err != nil {
				httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid member id"))
				return
			}
			raw = decoded
		}
		record, err := members.Get(r.Context(), raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, "Member found", record)
	}
}
