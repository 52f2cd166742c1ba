package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Divas-Gupta30/hmo-assistant/internal/server"
)

// ServeCmd starts the HTTP chat API.
// Usage: agent serve --port 8000
type ServeCmd struct {
	Port string `short:"p" long:"port" description:"listen port (defaults to PORT)"`
}

func (c *ServeCmd) Execute(_ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := context.Background()

	wf, kb, err := a.workflow(ctx)
	if err != nil {
		return err
	}
	sessions, err := a.sessions(ctx)
	if err != nil {
		return err
	}

	port := c.Port
	if port == "" {
		port = a.cfg.Port
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           server.New(wf, sessions, kb, a.logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		a.logger.Info("chat API starting", "port", port, "sessions", a.cfg.SessionBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	// Wait for interrupt signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errc:
		return err
	case <-sig:
	}

	a.logger.Info("shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
