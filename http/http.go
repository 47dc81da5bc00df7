package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
)

// The time given to servers to finish their in-flight requests. Hijacked
// connections are not waited for.
const shutdownTimeout = 10 * time.Second

// ListenAndServe starts the given servers and blocks until they all stopped.
// Servers are shut down when the context is done or when one of them fails,
// in which case the first failure is returned.
func ListenAndServe(ctx context.Context, servers ...*http.Server) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()

		for _, s := range servers {
			if err := s.Shutdown(shutdownCtx); err != nil {
				logs.Warn(errors.New("shutting down the server failed").
					WithTag("addr", s.Addr).
					Wrap(err))
			}
		}
	}()

	var wg sync.WaitGroup
	var once sync.Once
	var failure error

	for _, s := range servers {
		wg.Add(1)

		go func(s *http.Server) {
			defer wg.Done()

			logs.WithTag("addr", s.Addr).Info("starting server")

			switch err := s.ListenAndServe(); err {
			case nil, http.ErrServerClosed, context.Canceled:
				logs.WithTag("addr", s.Addr).Info("stopping server")

			default:
				once.Do(func() {
					failure = errors.New("server stopped").
						WithTag("addr", s.Addr).
						Wrap(err)
				})
				cancel()
			}
		}(s)
	}

	wg.Wait()
	cancel()
	<-stopped
	return failure
}

// MetricsPathFormatter returns an empty path for requests that did not reach a
// handler or were rejected before being handled.
func MetricsPathFormatter(statusCode int, path string) string {
	switch statusCode {
	case http.StatusMovedPermanently,
		http.StatusBadRequest,
		http.StatusUnauthorized,
		http.StatusNotFound,
		http.StatusMethodNotAllowed,
		http.StatusTooManyRequests:
		return ""

	default:
		return path
	}
}
