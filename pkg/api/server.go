// Package api implements the HTTP surface: the batch negotiation
// endpoint and the PUT/GET/verify transfer endpoints that consume its
// action plans.
package api

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/forgehost/lfs-gateway/pkg/blobstore"
	"github.com/forgehost/lfs-gateway/pkg/config"
	"github.com/forgehost/lfs-gateway/pkg/log"
	"github.com/forgehost/lfs-gateway/pkg/oracle"
	"github.com/forgehost/lfs-gateway/pkg/token"
)

const idleTimeout = 120 * time.Second

// Server wires the BatchNegotiator and TransferHandler endpoints onto a
// mux.Router, backed by a BlobStore, a TokenStore, and an AccessOracle.
type Server struct {
	Config  *config.Config
	Store   *blobstore.Store
	Tokens  *token.TokenStore
	Oracle  oracle.AccessOracle
	Log     log.Logger
	Audit   *log.Logger
	Router  *mux.Router
	httpSrv *http.Server
}

// New constructs a Server. Call SetupRoutes before Run.
func New(
	conf *config.Config,
	store *blobstore.Store,
	tokens *token.TokenStore,
	accessOracle oracle.AccessOracle,
	logger log.Logger,
	audit *log.Logger,
) *Server {
	return &Server{
		Config: conf,
		Store:  store,
		Tokens: tokens,
		Oracle: accessOracle,
		Log:    logger,
		Audit:  audit,
	}
}

// SetupRoutes builds the router: request-id tagging, structured access
// logging, panic recovery, then the batch and transfer endpoint
// registrations.
func (s *Server) SetupRoutes() {
	router := mux.NewRouter()
	router.UseEncodedPath()

	router.Use(
		RequestIDMiddleware(),
		AccessLogMiddleware(s.Log),
		handlers.RecoveryHandler(
			handlers.RecoveryLogger(recoveryLogAdapter{s.Log}),
			handlers.PrintRecoveryStack(false),
		),
	)

	if s.Audit != nil {
		router.Use(AuditLogMiddleware(s.Audit))
	}

	s.Router = router

	s.setupBatchRoute()
	s.setupTransferRoutes()
	s.setupHealthRoutes()
}

// Run starts the HTTP (or HTTPS, if TLS is configured) listener and
// blocks until it exits.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.Config.HTTP.Address, s.Config.HTTP.Port)

	s.httpSrv = &http.Server{
		Addr:        addr,
		Handler:     s.Router,
		IdleTimeout: idleTimeout,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	if tlsConf := s.Config.HTTP.TLS; tlsConf != nil && tlsConf.Cert != "" && tlsConf.Key != "" {
		cert, err := tls.LoadX509KeyPair(tlsConf.Cert, tlsConf.Key)
		if err != nil {
			return fmt.Errorf("load tls keypair: %w", err)
		}

		s.httpSrv.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}

		s.Log.Info().Str("address", addr).Msg("listening (tls)")

		return s.httpSrv.ServeTLS(listener, "", "")
	}

	s.Log.Info().Str("address", addr).Msg("listening")

	return s.httpSrv.Serve(listener)
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}

	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) setupHealthRoutes() {
	ok := func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}

	s.Router.HandleFunc("/healthz", ok).Methods(http.MethodGet)
	s.Router.HandleFunc("/livez", ok).Methods(http.MethodGet)
	s.Router.HandleFunc("/readyz", ok).Methods(http.MethodGet)
}

type recoveryLogAdapter struct {
	log log.Logger
}

func (a recoveryLogAdapter) Println(v ...interface{}) {
	a.log.Error().Interface("panic", v).Msg("recovered from panic")
}
