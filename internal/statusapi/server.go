// Package statusapi serves a read-only HTTP introspection surface over the
// configured datasets and the execution engine's last-known state: what's
// configured, what ran last, what's in flight. It carries no write routes —
// snapshot lifecycle and replication are driven exclusively by
// internal/scheduler and internal/engine.
package statusapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/sherbacov/zsnapd/internal/dsconfig"
	"github.com/sherbacov/zsnapd/internal/engine"
)

// AuthenticationTokenHeader is checked before the GET param fallback, the
// same precedence the teacher's zfs-over-HTTP server uses.
const (
	AuthenticationTokenHeader   = "X-Zsnapd-Auth-Token"
	authenticationTokenGETParam = "authToken"
)

type handle func(w http.ResponseWriter, req *http.Request, ps httprouter.Params, logger *slog.Logger)

// Server is the read-only introspection HTTP server, grounded on
// http/http.go's HTTP struct: same httprouter + auth-token-wrapper shape,
// repurposed to serve JSON snapshots of engine/config state instead of ZFS
// send/receive stream bodies.
type Server struct {
	router *httprouter.Router
	config Config
	logger *slog.Logger
	ctx    context.Context

	engine  *engine.Engine
	adapter engine.ZFSAdapter
	configs func() []*dsconfig.Config

	socket net.Listener
	server *http.Server
}

// NewServer builds a Server. configs returns the current dataset
// configuration set; adapter is consulted for a dataset's local snapshot
// listing (usually engine.NewLocalZFSAdapter()).
func NewServer(ctx context.Context, conf Config, eng *engine.Engine, adapter engine.ZFSAdapter, configs func() []*dsconfig.Config, logger *slog.Logger) (*Server, error) {
	s := &Server{
		router:  httprouter.New(),
		config:  conf,
		logger:  logger,
		ctx:     ctx,
		engine:  eng,
		adapter: adapter,
		configs: configs,
	}
	return s, s.init()
}

func (s *Server) init() error {
	s.registerRoutes()

	var err error
	s.socket, err = net.Listen("tcp", fmt.Sprintf("%s:%d", s.config.Host, s.config.Port))
	if err != nil {
		s.logger.Error("statusapi.init: failed to open socket", "host", s.config.Host, "port", s.config.Port, "error", err)
		return err
	}
	s.logger.Info("statusapi.init: serving", "host", s.config.Host, "port", s.config.Port)

	s.server = &http.Server{
		Handler: s.router,
		BaseContext: func(net.Listener) context.Context {
			return s.ctx
		},
	}
	return nil
}

// registerRoutes uses a catch-all parameter for the dataset segment, not
// httprouter's single-segment :dataset — ZFS dataset names are themselves
// slash-separated paths ("tank/backups/mail"), which a single route segment
// can't carry. handleDataset dispatches between the detail view and the
// snapshots sub-resource by inspecting the trailing path component.
func (s *Server) registerRoutes() {
	s.router.GET("/datasets", s.authenticated(s.handleListDatasets))
	s.router.GET("/datasets/*dataset", s.authenticated(s.handleDataset))
}

// Serve blocks serving the introspection API until the server is closed.
func (s *Server) Serve() {
	err := s.server.Serve(s.socket)
	if !errors.Is(err, http.ErrServerClosed) && s.ctx.Err() == nil {
		s.logger.Error("statusapi.Serve: server error", "error", err)
		return
	}
	s.logger.Info("statusapi.Serve: server closed")
}

// Close shuts the server down, releasing its listening socket.
func (s *Server) Close(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) authenticated(h handle) httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		logger := s.logger.With("url", req.URL.String(), "method", req.Method)

		if len(s.config.AuthenticationTokens) > 0 {
			token := req.Header.Get(AuthenticationTokenHeader)
			if token == "" {
				token = req.URL.Query().Get(authenticationTokenGETParam)
			}
			found := false
			for _, tkn := range s.config.AuthenticationTokens {
				if tkn == token {
					found = true
					break
				}
			}
			if !found {
				logger.Info("statusapi.authenticated: invalid authentication")
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
		}

		logger.Debug("statusapi.authenticated: handling")
		h(w, req, ps, logger)
	}
}

// datasetConfig looks up a dataset by name among the currently configured
// datasets. ok is false if the dataset is unknown.
func (s *Server) datasetConfig(name string) (*dsconfig.Config, bool) {
	for _, cfg := range s.configs() {
		if cfg.Name == name {
			return cfg, true
		}
	}
	return nil, false
}
