package natsbus

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// Conn is one transport connection to a remote agent endpoint. The
// connection pool owns Conn values; callers only ever see them through a
// lease.
type Conn interface {
	// Exchange publishes payload on subject with a private reply inbox and
	// feeds every reply message to recv until recv reports the terminal
	// message or ctx is done. The agent may answer with a single message or
	// a sequence culminating in a terminal one.
	Exchange(ctx context.Context, subject string, payload []byte, recv func(data []byte) (done bool)) error

	// Healthy reports whether the connection is still usable. Pools probe
	// idle connections before handing them out again.
	Healthy() bool

	Close()
}

// Dialer establishes a Conn to an agent address (host:port).
type Dialer func(address string) (Conn, error)

// NewDialer returns a Dialer for NATS-speaking agent endpoints. credential
// is an optional "user:pass" pair applied to every dial.
func NewDialer(credential string) Dialer {
	return func(address string) (Conn, error) {
		url := address
		if !strings.Contains(url, "://") {
			url = "nats://" + url
		}

		opts := []nats.Option{
			nats.Timeout(5 * time.Second),
			nats.MaxReconnects(0),
		}
		if credential != "" {
			user, pass, ok := strings.Cut(credential, ":")
			if !ok {
				return nil, fmt.Errorf("malformed agent credential, want user:pass")
			}
			opts = append(opts, nats.UserInfo(user, pass))
		}

		conn, err := nats.Connect(url, opts...)
		if err != nil {
			return nil, fmt.Errorf("dial agent %s: %w", address, err)
		}
		return &natsConn{conn: conn}, nil
	}
}

type natsConn struct {
	conn *nats.Conn
}

func (c *natsConn) Exchange(ctx context.Context, subject string, payload []byte, recv func([]byte) bool) error {
	inbox := nats.NewInbox()
	sub, err := c.conn.SubscribeSync(inbox)
	if err != nil {
		return fmt.Errorf("subscribe reply inbox: %w", err)
	}
	defer sub.Unsubscribe()

	if err := c.conn.PublishRequest(subject, inbox, payload); err != nil {
		return fmt.Errorf("publish request: %w", err)
	}

	for {
		msg, err := sub.NextMsgWithContext(ctx)
		if err != nil {
			return fmt.Errorf("await reply: %w", err)
		}
		if recv(msg.Data) {
			return nil
		}
	}
}

func (c *natsConn) Healthy() bool {
	if c.conn.Status() != nats.CONNECTED {
		return false
	}
	// Round-trip probe so a half-dead TCP session is caught before reuse.
	return c.conn.FlushTimeout(2*time.Second) == nil
}

func (c *natsConn) Close() {
	c.conn.Close()
}
