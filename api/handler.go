package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/htol/techlib/middleware"
	"github.com/htol/techlib/ratelimit"
	"github.com/htol/techlib/service"
)

// Options configure the HTTP surface.
type Options struct {
	// PublicURL is the external base URL used in OPDS links. When empty it
	// is derived from each request.
	PublicURL   string
	CORSOrigins []string
	// AuthLimiter throttles sign-in and sign-up per client IP.
	AuthLimiter    *ratelimit.KeyedRateLimiter
	MaxUploadBytes int64
	// UploadTimeout extends the connection deadlines while an admin book
	// request is read. Zero keeps the server timeouts.
	UploadTimeout time.Duration
	// TrustProxy takes the client address from X-Forwarded-For/X-Real-IP.
	// Enable only behind a reverse proxy that sets those headers.
	TrustProxy bool
}

type handler struct {
	svc           *service.Service
	publicURL     string
	maxUpload     int64
	uploadTimeout time.Duration
	now           func() time.Time
}

// NewHandler creates and returns the main HTTP handler (router) for the application
func NewHandler(svc *service.Service, opts Options) http.Handler {
	h := &handler{
		svc:           svc,
		publicURL:     strings.TrimRight(opts.PublicURL, "/"),
		maxUpload:     opts.MaxUploadBytes,
		uploadTimeout: opts.UploadTimeout,
		now:           time.Now,
	}
	if h.maxUpload <= 0 {
		h.maxUpload = 50 << 20
	}

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	withCORS := cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{"Content-Disposition", middleware.RequestIDHeader},
		MaxAge:         300,
	})

	r := chi.NewRouter()
	if opts.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(h.authenticate)

	r.Get("/health", h.health)
	r.Get("/files/pdf/{name}", h.serveStoredFile)

	// OPDS catalog
	r.Route("/opds", func(r chi.Router) {
		r.Get("/", h.opdsRoot)
		r.Get("/new", h.opdsNew)
		r.Get("/search", h.opdsSearch)
		r.Get("/opensearch.xml", h.opdsOpenSearch)
		r.Get("/categories", h.opdsCategories)
		r.Get("/categories/{name}", h.opdsCategoryBooks)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(withCORS)

		r.Get("/books", h.listBooks)
		r.Get("/books/{id}", h.getBook)
		r.Get("/books/{id}/pdf", h.downloadPDF)
		r.Get("/search", h.searchBooks)
		r.Get("/facets", h.facets)

		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(rateLimit(opts.AuthLimiter))
				r.Post("/signup", h.signUp)
				r.Post("/signin", h.signIn)
			})
			r.With(requireUser).Post("/signout", h.signOut)
			r.With(requireUser).Get("/me", h.me)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireUser)
			r.Get("/account/profile", h.getProfile)
			r.Put("/account/profile", h.updateProfile)

			r.Get("/favorites", h.listFavorites)
			r.Get("/favorites/{bookID}", h.getFavorite)
			r.Put("/favorites/{bookID}", h.addFavorite)
			r.Delete("/favorites/{bookID}", h.removeFavorite)
			r.Post("/favorites/{bookID}/toggle", h.toggleFavorite)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAdmin)
			r.Get("/books", h.adminListBooks)
			r.Post("/books", h.adminCreateBook)
			r.Put("/books/{id}", h.adminUpdateBook)
			r.Delete("/books/{id}", h.adminDeleteBook)
			r.Get("/stats", h.adminStats)
			r.Get("/storage", h.adminStorage)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusNotFound, errorBody{Error: "route not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
	})

	// Apply middleware chain
	chain := middleware.Chain(
		middleware.RequestID,
		middleware.Recovery,
		middleware.Logger,
	)

	return chain(r)
}

// baseURL returns the external base URL for absolute links.
func (h *handler) baseURL(r *http.Request) string {
	if h.publicURL != "" {
		return h.publicURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return fmt.Sprintf("%s://%s", scheme, r.Host)
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Ping(r.Context()); err != nil {
		respondWithError(w, r, "service unavailable", err, http.StatusServiceUnavailable)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
