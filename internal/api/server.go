// Package api wires the chat-answering core and its supporting services
// into an HTTP surface: gorilla/mux routing and rs/cors, mirroring the
// teacher's Server/setupRoutes/Router shape.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pinggolf/inventory-chat-core/internal/alerts"
	"github.com/pinggolf/inventory-chat-core/internal/auth"
	"github.com/pinggolf/inventory-chat-core/internal/chatcore/handlers"
	"github.com/pinggolf/inventory-chat-core/internal/chatcore/ragstore"
	"github.com/pinggolf/inventory-chat-core/internal/chatcore/router"
	"github.com/pinggolf/inventory-chat-core/internal/chatcore/rules"
	"github.com/pinggolf/inventory-chat-core/internal/clock"
	"github.com/pinggolf/inventory-chat-core/internal/config"
	"github.com/pinggolf/inventory-chat-core/internal/db"
	"github.com/pinggolf/inventory-chat-core/internal/llm"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// Server holds every component the HTTP layer wires together.
type Server struct {
	cfg        *config.Config
	db         *db.Queries
	router     *mux.Router
	log        zerolog.Logger
	clock      clock.Clock
	authMgr    *auth.Manager
	llmClient  *llm.Client
	ragStore   ragstore.Store
	rulesReg   *rules.Registry
	handlerReg *handlers.Registry
	embedCache *router.EmbeddingCache
	exemplars  router.ExemplarSet
	scheduler  *alerts.Scheduler
}

// NewServer builds the fully-wired Server and registers all routes.
func NewServer(
	cfg *config.Config,
	queries *db.Queries,
	log zerolog.Logger,
	c clock.Clock,
	authMgr *auth.Manager,
	llmClient *llm.Client,
	ragStore ragstore.Store,
	scheduler *alerts.Scheduler,
) *Server {
	s := &Server{
		cfg:        cfg,
		db:         queries,
		router:     mux.NewRouter(),
		log:        log,
		clock:      c,
		authMgr:    authMgr,
		llmClient:  llmClient,
		ragStore:   ragStore,
		rulesReg:   rules.DefaultRegistry(),
		handlerReg: handlers.NewRegistry(),
		embedCache: router.NewEmbeddingCache(llmClient),
		exemplars:  defaultExemplarSet(),
		scheduler:  scheduler,
	}
	s.setupRoutes()
	return s
}

func defaultExemplarSet() router.ExemplarSet {
	return router.ExemplarSet{
		DocQnA: []string{
			"what is your return policy",
			"how do i request a warranty replacement",
			"where can i find the shipping documentation",
		},
		OpenChat: []string{
			"how's business doing overall",
			"give me a general update",
			"what should i focus on this week",
		},
	}
}

// Router returns the CORS-wrapped handler to pass to http.Server.
func (s *Server) Router() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOriginsList(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	})
	return c.Handler(s.router)
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)

	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/auth/refresh", s.handleRefresh).Methods(http.MethodPost)

	protected := api.PathPrefix("").Subrouter()
	protected.Use(RequireBearerAuth(s.authMgr))

	protected.HandleFunc("/chat/query", s.handleChatQuery).Methods(http.MethodPost)
	protected.HandleFunc("/chat2/query", s.handleChat2Query).Methods(http.MethodPost)

	protected.HandleFunc("/analytics", s.handleAnalytics).Methods(http.MethodGet)
	protected.HandleFunc("/analytics/sales", s.handleAnalyticsSales).Methods(http.MethodGet)
	protected.HandleFunc("/analytics/stockout-risk", s.handleStockoutRisk).Methods(http.MethodGet)

	protected.HandleFunc("/purchasing/reorder-suggestions", s.handleReorderSuggestions).Methods(http.MethodGet)
	protected.HandleFunc("/purchasing/reorder-suggestions/explain/{product_id}", s.handleReorderExplain).Methods(http.MethodGet)
	protected.HandleFunc("/purchasing/reorder-suggestions/draft-po", s.handleDraftPO).Methods(http.MethodPost)
	protected.HandleFunc("/purchasing/reorder-suggestions/draft-po/{po_id}", s.handleGetDraftPO).Methods(http.MethodGet)

	internal := api.PathPrefix("/internal").Subrouter()
	internal.Use(RequireCronToken(s.cfg.AlertCronToken))
	internal.HandleFunc("/run-daily-alerts", s.handleRunDailyAlerts).Methods(http.MethodPost)
}
