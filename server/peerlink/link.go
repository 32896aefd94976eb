// peerlink carries whole messages over a websocket: inbound messages are handed to a
// callback, outbound values are written as JSON or bare text. The remote robot and the map
// viewer page both connect through it.
package peerlink

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"gridmap/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Config holds the link timings.
type Config struct {
	// Time allowed to write a message to the peer.
	WriteWait time.Duration
	// The rate at which liveness pings are sent.
	PingInterval time.Duration
	// Pongs older than this mean the peer is gone. By definition it encompasses the number of
	// pings to tolerate losing.
	PongWait time.Duration
	// Minimum spacing of outbound messages. Messages are delayed, never dropped; callers
	// coalesce idempotent updates upstream.
	PublishInterval time.Duration
	// Maximum message size allowed from peer.
	MaxMessageSize int64
}

func DefaultConfig() Config {
	return Config{
		WriteWait:       time.Second,
		PingInterval:    200 * time.Millisecond,
		PongWait:        800 * time.Millisecond,
		PublishInterval: 100 * time.Millisecond,
		MaxMessageSize:  8192,
	}
}

// Text is written to the peer as a bare text message rather than as JSON.
type Text string

// MessageFunc receives each inbound message. A returned error tears the link down, so
// callbacks should swallow errors that concern only the message itself.
type MessageFunc func(ctx context.Context, msg []byte) error

var upgrader = websocket.Upgrader{}

// Link is one websocket connection. Outbound values of type T are read from updates and
// written as JSON, except Text, which is written as is. Inbound messages go to onMessage,
// or are discarded if it is nil.
type Link[T any] struct {
	id        string
	cfg       Config
	updates   <-chan T
	onMessage MessageFunc
	ws        *websock
	log       *logrus.Entry
}

// Upgrade upgrades the request to a websocket and returns its link.
func Upgrade[T any](
	w http.ResponseWriter,
	r *http.Request,
	cfg Config,
	updates <-chan T,
	onMessage MessageFunc,
) (*Link[T], error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already replied to the client.
		return nil, fmt.Errorf("upgrade: %w", err)
	}
	conn.SetReadLimit(cfg.MaxMessageSize)

	id := uuid.New().String()[:8]
	return &Link[T]{
		id:        id,
		cfg:       cfg,
		updates:   updates,
		onMessage: onMessage,
		ws:        newWebSocket(conn, cfg.WriteWait),
		log: logger.Log.WithFields(logrus.Fields{
			"link":   id,
			"remote": r.RemoteAddr,
		}),
	}, nil
}

func (l *Link[T]) ID() string {
	return l.id
}

// Sync runs the link until the peer disconnects, a routine fails, or ctx is cancelled,
// then closes the socket. It returns nil on a normal disconnect.
func (l *Link[T]) Sync(ctx context.Context) error {
	l.log.Info("link opened")
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return l.readMessages(groupCtx)
	})
	group.Go(func() error {
		return l.pingPong(groupCtx)
	})
	group.Go(func() error {
		return l.publish(groupCtx)
	})
	// ReadMessage only returns once the socket is closed, so closing is what ends the reader.
	group.Go(func() error {
		<-groupCtx.Done()
		l.ws.Close()
		return nil
	})

	err := group.Wait()
	if isClosure(err) || errors.Is(err, context.Canceled) {
		err = nil
	}
	if err != nil {
		l.log.WithError(err).Warn("link failed")
		return err
	}
	l.log.Info("link closed")
	return nil
}

var ErrPongDeadlineExceeded = errors.New("peer disconnect, pong deadline exceeded")

// Runs the ping-pong for the liveness check.
// Note that this requires readMessages to be running, since the pong handler is called from
// within ReadMessage.
func (l *Link[T]) pingPong(ctx context.Context) error {
	pong := make(chan struct{}, 1)
	l.ws.Conn().SetPongHandler(func(_ string) error {
		select {
		case pong <- struct{}{}:
		default:
		}
		return nil
	})

	pinger := channerics.NewTicker(ctx.Done(), l.cfg.PingInterval)
	lastPong := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pinger:
			if time.Since(lastPong) > l.cfg.PongWait {
				return ErrPongDeadlineExceeded
			}
			if err := l.ping(ctx); err != nil {
				return err
			}
		case <-pong:
			lastPong = time.Now()
		}
	}
}

func (l *Link[T]) ping(ctx context.Context) error {
	return l.ws.Write(
		ctx,
		func(ws *websocket.Conn) (err error) {
			if err = ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(l.cfg.WriteWait)); err != nil {
				err = fmt.Errorf("ping failed: %w", err)
			}
			return
		})
}

// readMessages hands every inbound message to onMessage.
// Errors returned by websocket Read methods are permanent, hence any error
// must trigger full teardown.
func (l *Link[T]) readMessages(ctx context.Context) error {
	for {
		var msg []byte
		err := l.ws.Read(
			ctx,
			func(ws *websocket.Conn) (readErr error) {
				_, msg, readErr = ws.ReadMessage()
				return
			})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if msg == nil {
			// Read gave up because ctx is done.
			return nil
		}

		l.log.WithField("bytes", len(msg)).Debug("message received")
		if l.onMessage == nil {
			continue
		}
		if err = l.onMessage(ctx, msg); err != nil {
			return err
		}
	}
}

func (l *Link[T]) publish(ctx context.Context) error {
	var lastSync time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-l.updates:
			// Graceful input channel closure
			if !ok {
				return nil
			}
			// Space out messages sent too quickly.
			if wait := l.cfg.PublishInterval - time.Since(lastSync); wait > 0 {
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return nil
				}
			}

			lastSync = time.Now()
			err := l.ws.Write(
				ctx,
				func(ws *websocket.Conn) (writeErr error) {
					if writeErr = ws.SetWriteDeadline(time.Now().Add(l.cfg.WriteWait)); writeErr != nil {
						return fmt.Errorf("failed to set deadline: %w", writeErr)
					}
					if text, ok := any(update).(Text); ok {
						writeErr = ws.WriteMessage(websocket.TextMessage, []byte(text))
					} else {
						writeErr = ws.WriteJSON(update)
					}
					if writeErr != nil {
						writeErr = fmt.Errorf("publish failed: %w", writeErr)
					}
					return
				})
			if err != nil {
				return err
			}
		}
	}
}

func isClosure(err error) bool {
	return err != nil && websocket.IsCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway)
}
