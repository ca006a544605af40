// Package api exposes the resultsdb HTTP API.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hluk/resultsdb/pkg/api/query"
	"github.com/hluk/resultsdb/pkg/api/store"
	"github.com/hluk/resultsdb/pkg/config"
	"github.com/hluk/resultsdb/pkg/messaging"
)

const (
	shutdownTimeout = 10 * time.Second
	publishTimeout  = 30 * time.Second
)

// Server exposes the API HTTP server lifecycle.
type Server interface {
	Start(ctx context.Context) error
	Stop() error
}

// Compile-time interface check.
var _ Server = (*server)(nil)

type server struct {
	log        logrus.FieldLogger
	cfg        *config.Config
	store      store.Store
	publisher  messaging.Publisher
	httpServer *http.Server
	wg         sync.WaitGroup
	done       chan struct{}
}

// NewServer creates a new API server.
func NewServer(
	log logrus.FieldLogger,
	cfg *config.Config,
) Server {
	return &server{
		log:  log.WithField("component", "api"),
		cfg:  cfg,
		done: make(chan struct{}),
	}
}

// Start opens the store, wires the messaging plugin and starts the HTTP
// server.
func (s *server) Start(ctx context.Context) error {
	s.store = store.NewStore(s.log, &s.cfg.Database)
	if err := s.store.Start(ctx); err != nil {
		return fmt.Errorf("starting store: %w", err)
	}

	publisher, err := messaging.New(s.log, &s.cfg.Messaging)
	if err != nil {
		return fmt.Errorf("creating publisher: %w", err)
	}

	s.publisher = publisher

	if s.publisher != nil {
		s.log.WithField("plugin", s.cfg.Messaging.Plugin).
			Info("Message publishing enabled")
	}

	router := s.buildRouter()

	s.httpServer = &http.Server{
		Addr:              s.cfg.Server.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Bind the listener synchronously so we fail fast on port conflicts.
	ln, err := net.Listen("tcp", s.cfg.Server.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Server.Listen, err)
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		s.log.WithField("listen", s.cfg.Server.Listen).
			Info("API server starting")

		if err := s.httpServer.Serve(ln); err != nil &&
			err != http.ErrServerClosed {
			s.log.WithError(err).Error("HTTP server error")
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server and closes the store.
func (s *server) Stop() error {
	close(s.done)

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(
			context.Background(), shutdownTimeout,
		)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.log.WithError(err).Warn("HTTP server shutdown error")
		}
	}

	s.wg.Wait()

	if s.store != nil {
		if err := s.store.Stop(); err != nil {
			return fmt.Errorf("stopping store: %w", err)
		}
	}

	s.log.Info("API server stopped")

	return nil
}

// publishResult announces a committed result on the message bus.
// Fire-and-forget: publish failures are logged, never surfaced to the
// client whose commit already succeeded.
func (s *server) publishResult(result *store.Result) {
	if s.publisher == nil {
		return
	}

	msg := toResultMessage(result)

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(
			context.Background(), publishTimeout,
		)
		defer cancel()

		if err := s.publisher.Publish(ctx, msg); err != nil {
			s.log.WithError(err).
				WithField("id", msg.ID).
				Warn("Failed to publish result")
		}
	}()
}

func toResultMessage(result *store.Result) *messaging.ResultMessage {
	return &messaging.ResultMessage{
		ID: result.ID,
		Testcase: messaging.TestcaseRef{
			Name:   result.Testcase.Name,
			RefURL: result.Testcase.RefURL,
		},
		Outcome:    result.Outcome,
		Note:       result.Note,
		RefURL:     result.RefURL,
		SubmitTime: query.FormatTimestamp(result.SubmitTime),
		Groups:     result.GroupUUIDs(),
		Data:       result.DataValues(),
	}
}
