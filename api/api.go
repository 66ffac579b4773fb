// Package api exposes a host over HTTP for auditing harnesses.
//
//	GET  /healthz
//	GET  /metrics
//	GET  /contracts
//	GET  /contracts/{name}
//	GET  /contracts/{name}/entrypoints
//	GET  /contracts/{name}/snapshots
//	POST /contracts/{name}/procedures/{id}
//	POST /contracts/{name}/functions/{id}
//	GET  /wallets/{identity}
//	POST /wallets/{identity}/fund
//	GET  /receipts
//	GET  /receipts/{id}
package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xraph/testbank/host"
)

// Handler serves the HTTP surface of a host.
type Handler struct {
	host     *host.Host
	logger   *slog.Logger
	gatherer prometheus.Gatherer
	basePath string
	router   chi.Router
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// WithGatherer sets the registry served at /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(h *Handler) { h.gatherer = g }
}

// WithBasePath mounts every route under path.
func WithBasePath(path string) Option {
	return func(h *Handler) { h.basePath = strings.TrimRight(path, "/") }
}

// New builds the handler for h.
func New(h *host.Host, opts ...Option) *Handler {
	a := &Handler{
		host:     h,
		logger:   slog.Default(),
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(a)
	}

	r := chi.NewRouter()
	routes := func(r chi.Router) {
		r.Get("/healthz", a.health)
		r.Handle("/metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))

		r.Route("/contracts", func(r chi.Router) {
			r.Get("/", a.listContracts)
			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", a.getContract)
				r.Get("/entrypoints", a.listEntryPoints)
				r.Get("/snapshots", a.listSnapshots)
				r.Post("/procedures/{id}", a.invokeProcedure)
				r.Post("/functions/{id}", a.invokeFunction)
			})
		})

		r.Route("/wallets/{identity}", func(r chi.Router) {
			r.Get("/", a.getWallet)
			r.Post("/fund", a.fundWallet)
		})

		r.Route("/receipts", func(r chi.Router) {
			r.Get("/", a.listReceipts)
			r.Get("/{id}", a.getReceipt)
		})
	}

	if a.basePath != "" {
		r.Route(a.basePath, routes)
	} else {
		routes(r)
	}
	a.router = r
	return a
}

// ServeHTTP implements http.Handler.
func (a *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}
