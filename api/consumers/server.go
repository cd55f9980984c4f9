package consumers

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"

	"github.com/kilianp07/smartcharge/core/logger"
)

// Config controls the HTTP API listener.
type Config struct {
	Addr  string `json:"addr" yaml:"addr"`
	Token string `json:"token" yaml:"token"`
}

// Serve runs the API on addr until ctx is done. Requests are logged in
// Apache combined format to stdout.
func Serve(ctx context.Context, addr string, router http.Handler, log logger.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handlers.RecoveryHandler()(handlers.CombinedLoggingHandler(os.Stdout, router)),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Infof("api listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
