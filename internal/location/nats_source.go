package location

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/annel0/geocoin/internal/logging"
	"github.com/nats-io/nats.go"
)

// NATSSource получает измерения из subject NATS (например, от GPS-трекера).
// Соединение устанавливается при подписке и закрывается при её отмене.
type NATSSource struct {
	url     string
	subject string
}

// NewNATSSource создаёт источник; подключение откладывается до Subscribe
func NewNATSSource(url, subject string) *NATSSource {
	if subject == "" {
		subject = "geocoin.location"
	}
	return &NATSSource{url: url, subject: subject}
}

type natsSub struct {
	conn   *nats.Conn
	sub    *nats.Subscription
	cancel context.CancelFunc
	once   sync.Once
}

// Subscribe подключается к NATS и подписывается на subject
func (s *NATSSource) Subscribe(ctx context.Context, onFix Handler, onErr ErrorHandler) (Subscription, error) {
	logger := logging.GetLocationLogger()

	opts := []nats.Option{
		nats.Name("geocoin-location"),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected to %s", nc.ConnectedUrl())
		}),
	}

	conn, err := nats.Connect(s.url, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	sctx, cancel := context.WithCancel(ctx)
	ns := &natsSub{conn: conn, cancel: cancel}

	sub, err := conn.Subscribe(s.subject, func(msg *nats.Msg) {
		if sctx.Err() != nil {
			return
		}
		fix, err := DecodeMessage(msg.Data)
		if err != nil {
			if onErr != nil {
				onErr(err)
			}
			return
		}
		onFix(fix)
	})
	if err != nil {
		cancel()
		conn.Close()
		return nil, fmt.Errorf("%w: subscribe %s: %v", ErrUnavailable, s.subject, err)
	}
	ns.sub = sub

	logger.Info("📍 Listening for location fixes on %s", s.subject)
	return ns, nil
}

// Stop отписывается и закрывает соединение
func (ns *natsSub) Stop() {
	ns.once.Do(func() {
		ns.cancel()
		_ = ns.sub.Unsubscribe()
		ns.conn.Close()
	})
}
