package setup

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	// #nosec G108 -- the profiling endpoint binds to localhost only
	_ "net/http/pprof"
	"time"

	"go.uber.org/zap"
)

// debugServer serves the net/http/pprof handlers on a localhost port so a
// running process can be profiled without redeploying.
type debugServer struct {
	srv      *http.Server
	listener net.Listener
}

// startDebugServer binds the profiling endpoint and serves it in the
// background. The listener is restricted to localhost; the handlers are
// whatever net/http/pprof registered on the default mux.
func startDebugServer(port int, logger *zap.Logger) (*debugServer, error) {
	addr := fmt.Sprintf("localhost:%d", port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind pprof listener: %w", err)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           http.DefaultServeMux,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Serving pprof endpoint", zap.String("address", addr))

		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("pprof server stopped", zap.Error(err))
		}
	}()

	return &debugServer{srv: srv, listener: listener}, nil
}

// shutdown stops the profiling endpoint, waiting for in-flight requests
// up to the context deadline.
func (d *debugServer) shutdown(ctx context.Context) error {
	err := d.srv.Shutdown(ctx)
	d.listener.Close()

	return err
}
