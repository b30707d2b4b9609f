package action

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// NamePublish is the name of the NATS publishing action.
const NamePublish = "publish"

// DefaultSubjectPrefix prefixes the subjects events are published on.
const DefaultSubjectPrefix = "anreicher.generated"

// Publisher sends raw messages. *nats.Conn satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// PublishAction publishes each Event as JSON on <prefix>.<template>.
type PublishAction struct {
	pub    Publisher
	prefix string
}

// NewPublishAction returns a publish action using pub.
func NewPublishAction(pub Publisher, prefix string) *PublishAction {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &PublishAction{pub: pub, prefix: prefix}
}

func (a *PublishAction) Name() string { return NamePublish }

// Subject returns the subject events of template are published on.
func (a *PublishAction) Subject(template string) string {
	if template == "" {
		template = "none"
	}
	return a.prefix + "." + template
}

func (a *PublishAction) Execute(_ context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := a.pub.Publish(a.Subject(ev.Template), payload); err != nil {
		return fmt.Errorf("publish %s: %w", a.Subject(ev.Template), err)
	}
	return nil
}

// ConnectNATS opens a NATS connection that keeps retrying in the
// background when the server is not reachable yet.
func ConnectNATS(url, token string, logger *slog.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := []nats.Option{
		nats.Name("anreicher"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return nc, nil
}
