// Package messaging announces committed results to a message bus.
// Publication is best-effort: a publish failure never converts a
// successful commit into a reported failure.
package messaging

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/hluk/resultsdb/pkg/config"
)

// ResultMessage is the published view of a committed result.
type ResultMessage struct {
	ID         uint                `json:"id"`
	Testcase   TestcaseRef         `json:"testcase"`
	Outcome    string              `json:"outcome"`
	Note       *string             `json:"note"`
	RefURL     *string             `json:"ref_url"`
	SubmitTime string              `json:"submit_time"`
	Groups     []string            `json:"groups"`
	Data       map[string][]string `json:"data"`
}

// TestcaseRef names the testcase a published result belongs to.
type TestcaseRef struct {
	Name   string  `json:"name"`
	RefURL *string `json:"ref_url"`
}

// Publisher sends a result announcement to the bus.
type Publisher interface {
	Publish(ctx context.Context, msg *ResultMessage) error
}

// New creates the configured publisher plugin, or nil when messaging is
// disabled.
func New(
	log logrus.FieldLogger, cfg *config.MessagingConfig,
) (Publisher, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	switch cfg.Plugin {
	case "log":
		return NewLogPublisher(log), nil
	case "dummy":
		return NewRecorder(), nil
	default:
		return nil, fmt.Errorf("unknown messaging plugin: %s", cfg.Plugin)
	}
}

// LogPublisher writes result announcements to the application log.
type LogPublisher struct {
	log logrus.FieldLogger
}

// NewLogPublisher creates a log-backed publisher.
func NewLogPublisher(log logrus.FieldLogger) *LogPublisher {
	return &LogPublisher{
		log: log.WithField("component", "messaging"),
	}
}

// Publish logs the result announcement.
func (p *LogPublisher) Publish(
	_ context.Context, msg *ResultMessage,
) error {
	p.log.WithField("id", msg.ID).
		WithField("testcase", msg.Testcase.Name).
		WithField("outcome", msg.Outcome).
		Info("Result published")

	return nil
}

// Recorder keeps published messages in memory. Used by tests and as the
// "dummy" plugin.
type Recorder struct {
	mu      sync.Mutex
	history []*ResultMessage
}

// NewRecorder creates an in-memory publisher.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Publish records the message.
func (r *Recorder) Publish(_ context.Context, msg *ResultMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.history = append(r.history, msg)

	return nil
}

// History returns a snapshot of the recorded messages.
func (r *Recorder) History() []*ResultMessage {
	r.mu.Lock()
	defer r.mu.Unlock()

	history := make([]*ResultMessage, len(r.history))
	copy(history, r.history)

	return history
}
