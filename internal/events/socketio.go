package events

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"time"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/specialistvlad/manetbench/internal/ctxlog"
)

// ConnectTimeout bounds the initial socket.io handshake.
const ConnectTimeout = 15 * time.Second

// SocketIO publishes events over a socket.io connection.
type SocketIO struct {
	io *socket.Socket
}

// DialOptions configure the socket.io connection.
type DialOptions struct {
	Namespace          string
	InsecureSkipVerify bool
}

// Dial connects to rawURL and waits for the handshake to complete.
func Dial(ctx context.Context, rawURL string, o DialOptions) (*SocketIO, error) {
	logger := ctxlog.FromContext(ctx).With("publisher", "socketio", "url", rawURL)

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse events URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("events URL %q needs a scheme and a host", rawURL)
	}

	opts := socket.DefaultOptions()
	if parsedURL.Path != "" {
		opts.SetPath(parsedURL.Path)
	}
	if o.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	connectChan := make(chan error, 1)

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(o.Namespace, opts)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Info("Event publisher connected", "sid", io.Id())
		connectChan <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err, ok := errs[0].(error)
		if !ok {
			err = fmt.Errorf("%v", errs[0])
		}
		connectChan <- err
	})

	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
		return &SocketIO{io: io}, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection: %w", ctx.Err())
	case <-time.After(ConnectTimeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", ConnectTimeout)
	}
}

// Publish implements Publisher. Events are dropped while disconnected.
func (s *SocketIO) Publish(ctx context.Context, e Event) {
	logger := ctxlog.FromContext(ctx)
	if !s.io.Connected() {
		logger.Debug("Event publisher disconnected, dropping event.", "event", e.Name)
		return
	}
	if err := s.io.Emit(e.Name, e.Payload); err != nil {
		logger.Warn("Failed to publish event.", "event", e.Name, "error", err)
	}
}

// Close disconnects from the server.
func (s *SocketIO) Close() {
	s.io.Disconnect()
}
