package onebot

import (
	"context"
	"net/http"
	"time"

	"github.com/kvcfdd/yunzai-go/internal/constants"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

// EventHandler consumes one raw event frame from the runtime.
type EventHandler func(ctx context.Context, frame []byte)

// EventStream maintains a forward WebSocket connection to the bot runtime
// and delivers every event frame to the handler. The connection is redialed
// with exponential backoff after failures.
type EventStream struct {
	url         string
	accessToken string
	handler     EventHandler
	logger      *logrus.Logger
	stopCh      chan struct{}
	doneCh      chan struct{}
}

func NewEventStream(url, accessToken string, handler EventHandler, logger *logrus.Logger) *EventStream {
	return &EventStream{
		url:         url,
		accessToken: accessToken,
		handler:     handler,
		logger:      logger,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Start runs the read loop in a goroutine until Stop is called or the
// context is cancelled.
func (s *EventStream) Start(ctx context.Context) {
	go s.run(ctx)
}

// Stop terminates the stream and waits for the read loop to exit.
func (s *EventStream) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

func (s *EventStream) run(ctx context.Context) {
	defer close(s.doneCh)

	delay := time.Duration(constants.DefaultWSReconnectInitialSec) * time.Second
	maxDelay := time.Duration(constants.DefaultWSReconnectMaxSec) * time.Second

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		default:
		}

		if err := s.connectAndRead(ctx); err != nil {
			s.logger.WithError(err).Warn("Event stream disconnected")
		}

		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-time.After(delay):
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

func (s *EventStream) connectAndRead(ctx context.Context) error {
	header := http.Header{}
	if s.accessToken != "" {
		header.Set("Authorization", "Bearer "+s.accessToken)
	}

	conn, _, err := websocket.Dial(ctx, s.url, &websocket.DialOptions{
		HTTPHeader: header,
	})
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Event bursts from the runtime can be large
	conn.SetReadLimit(1 << 20)

	s.logger.WithField("url", s.url).Info("Event stream connected")

	for {
		select {
		case <-s.stopCh:
			return nil
		default:
		}

		_, frame, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		s.handler(ctx, frame)
	}
}
