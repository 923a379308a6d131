package services

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// StartServer serves r on port in the background. A listen failure is
// reported on the returned channel.
func StartServer(r *gin.Engine, port string, log *zap.Logger) (*http.Server, <-chan error) {
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server stopped", zap.Error(err))
			errCh <- err
		}
		close(errCh)
	}()

	log.Info("http server listening", zap.String("port", port))
	return srv, errCh
}
