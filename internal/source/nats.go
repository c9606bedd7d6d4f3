package source

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/hpungsan/vocap/internal/logging"
	"github.com/hpungsan/vocap/internal/utterance"
)

// NATS subscribes to a subject and treats every message body as a payload.
// A message ID header (Nats-Msg-Id) becomes the utterance source ID.
type NATS struct {
	URL     string
	Subject string
	Logger  *zap.Logger

	// Conn is used instead of dialing URL when set.
	Conn *nats.Conn
}

// Name implements Source.
func (n *NATS) Name() string {
	return "nats"
}

// Run implements Source.
func (n *NATS) Run(ctx context.Context, out chan<- utterance.Raw) error {
	logger := logging.OrNop(n.Logger).With(zap.String("source", n.Name()), zap.String("subject", n.Subject))

	nc := n.Conn
	if nc == nil {
		var err error
		nc, err = nats.Connect(n.URL,
			nats.Name("vocap"),
			nats.MaxReconnects(-1),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				if err != nil {
					logger.Warn("nats disconnected", zap.Error(err))
				}
			}),
			nats.ReconnectHandler(func(c *nats.Conn) {
				logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
			}),
		)
		if err != nil {
			return fmt.Errorf("connecting to nats: %w", err)
		}
		defer nc.Close()
	}

	msgChan := make(chan *nats.Msg, 64)
	sub, err := nc.ChanSubscribe(n.Subject, msgChan)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", n.Subject, err)
	}
	defer func() {
		_ = sub.Unsubscribe()
	}()
	logger.Info("nats source subscribed")

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-msgChan:
			at := time.Now()
			id := msg.Header.Get(nats.MsgIdHdr)
			texts := Extract(string(msg.Data))
			for i, text := range texts {
				raw := utterance.NewRaw(text, at)
				if id != "" {
					raw.SourceID = id
					if len(texts) > 1 {
						raw.SourceID = fmt.Sprintf("%s-%d", id, i)
					}
				}
				select {
				case out <- raw:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}
