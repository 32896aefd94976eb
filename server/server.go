package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"gridmap/controller"
	"gridmap/logger"
	"gridmap/server/peerlink"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 5 * time.Second

// Server serves the map: the peer's websocket, the viewer page and its websocket, and the
// operator's REST routes. It holds no session state of its own; everything goes through
// the controller.
type Server struct {
	addr    string
	ctrl    *controller.Controller
	linkCfg peerlink.Config
	router  *mux.Router
	log     *logrus.Entry
}

// NewServer returns a server over ctrl. Links use linkCfg.
func NewServer(
	addr string,
	ctrl *controller.Controller,
	linkCfg peerlink.Config,
) *Server {
	server := &Server{
		addr:    addr,
		ctrl:    ctrl,
		linkCfg: linkCfg,
		router:  mux.NewRouter(),
		log:     logger.Log.WithField("component", "server"),
	}
	server.routes()
	return server
}

func (server *Server) routes() {
	r := server.router
	r.HandleFunc("/", server.serveIndex).Methods(http.MethodGet)
	r.HandleFunc("/view/ws", server.serveViewer).Methods(http.MethodGet)
	r.HandleFunc("/ws", server.servePeer).Methods(http.MethodGet)
	r.HandleFunc("/healthz", server.serveHealth).Methods(http.MethodGet)
	r.HandleFunc("/map", server.serveMap).Methods(http.MethodGet)
	r.HandleFunc("/cells", server.serveCells).Methods(http.MethodGet)

	r.HandleFunc("/robot/{command}", server.handleMove).Methods(http.MethodPost)
	r.HandleFunc("/start", server.handleCoord(server.ctrl.SetStart)).Methods(http.MethodPost)
	r.HandleFunc("/waypoint", server.handleCoord(server.ctrl.SetWaypoint)).Methods(http.MethodPost)
	r.HandleFunc("/obstacle", server.handleCoord(server.ctrl.MarkObstacle)).Methods(http.MethodPost)
	r.HandleFunc("/explored", server.handleCoord(server.ctrl.MarkExplored)).Methods(http.MethodPost)
	r.HandleFunc("/unset", server.handleCoord(server.ctrl.Unset)).Methods(http.MethodPost)
	r.HandleFunc("/image", server.handleImage).Methods(http.MethodPost)
	r.HandleFunc("/reset", server.handleReset).Methods(http.MethodPost)
	r.HandleFunc("/mode/{mode}", server.handleMode).Methods(http.MethodPost)
	r.HandleFunc("/refresh", server.handleRefresh).Methods(http.MethodPost)

	r.HandleFunc("/send", server.handleSend).Methods(http.MethodPost)
	r.HandleFunc("/presets/{name}", server.servePreset).Methods(http.MethodGet)
	r.HandleFunc("/presets/{name}", server.handleSetPreset).Methods(http.MethodPut)
	r.HandleFunc("/presets/{name}/send", server.handleSendPreset).Methods(http.MethodPost)
}

// Handler returns the server's routes, for mounting or testing.
func (server *Server) Handler() http.Handler {
	return server.router
}

// Serve listens on the server's address until ctx is cancelled, then shuts down. Open
// links derive from ctx, so they close with it.
func (server *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              server.addr,
		Handler:           server.router,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errs := make(chan error, 1)
	go func() {
		server.log.WithField("addr", server.addr).Info("serving")
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errs; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	server.log.Info("server stopped")
	return nil
}
