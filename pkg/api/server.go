package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cbodonnell/arcade/pkg/api/handlers"
	"github.com/cbodonnell/arcade/pkg/api/middleware"
	"github.com/cbodonnell/arcade/pkg/arcade"
	authproviders "github.com/cbodonnell/arcade/pkg/auth/providers"
	"github.com/cbodonnell/arcade/pkg/log"
	"github.com/gorilla/mux"
)

type APIServer struct {
	server *http.Server
	tls    *TLSConfig
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type NewAPIServerOptions struct {
	Port         int
	TLS          *TLSConfig
	AuthProvider authproviders.AuthProvider
	RequireAuth  bool
	Arcade       handlers.Arcade
}

// NewAPIServer creates a new http.Server for handling API requests
func NewAPIServer(opts NewAPIServerOptions) *APIServer {
	return &APIServer{
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", opts.Port),
			Handler: NewRouter(opts),
		},
		tls: opts.TLS,
	}
}

// NewRouter builds the API routes.
func NewRouter(opts NewAPIServerOptions) *mux.Router {
	authMiddleware := middleware.NewAuthMiddleware(middleware.NewAuthMiddlewareOptions{
		AuthProvider:  opts.AuthProvider,
		Required:      opts.RequireAuth,
		AnonymousUser: arcade.AnonymousUser,
	})

	r := mux.NewRouter()
	r.Use(middleware.NewCORSMiddleware())
	r.HandleFunc("/healthz", handlers.HandleHealthz()).Methods(http.MethodGet)

	authed := r.NewRoute().Subrouter()
	authed.Use(authMiddleware)
	authed.HandleFunc("/games/{kind}/instances", handlers.HandleCreateInstance(opts.Arcade)).Methods(http.MethodPost, http.MethodOptions)
	authed.HandleFunc("/instances/{id}", handlers.HandleGetInstance(opts.Arcade)).Methods(http.MethodGet, http.MethodOptions)
	authed.HandleFunc("/instances/{id}", handlers.HandleDeleteInstance(opts.Arcade)).Methods(http.MethodDelete)
	authed.HandleFunc("/instances/{id}/actions", handlers.HandleDispatchAction(opts.Arcade)).Methods(http.MethodPost, http.MethodOptions)
	authed.HandleFunc("/launcher/last-game", handlers.HandleGetLastGame(opts.Arcade)).Methods(http.MethodGet, http.MethodOptions)
	authed.HandleFunc("/launcher/last-game", handlers.HandlePutLastGame(opts.Arcade)).Methods(http.MethodPut)
	return r
}

// Start starts the APIServer
func (s *APIServer) Start() {
	var listenAndServe func() error
	if s.tls != nil {
		log.Info("API server listening on %s with TLS", s.server.Addr)
		listenAndServe = func() error {
			return s.server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
		}
	} else {
		log.Info("API server listening on %s", s.server.Addr)
		listenAndServe = s.server.ListenAndServe
	}
	if err := listenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			log.Info("API server closed")
			return
		}
		log.Error("API server error: %v", err)
	}
}

// Stop stops the APIServer
func (s *APIServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
