package peerlink

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrSockCongestion indicates there are too many waiters on the socket for a given op.
var ErrSockCongestion = errors.New("sock op failed due to congestion")

const (
	writeDeadline    = time.Second
	closeGracePeriod = 250 * time.Millisecond
)

// websock serializes reads and writes to the websocket, whose requirements
// are that there may be only one concurrent reader and one concurrent writer.
type websock struct {
	// These are merely mutexes, but channel semantics are cleaner.
	readSem   chan struct{}
	writeSem  chan struct{}
	writeWait time.Duration
	ws        *websocket.Conn
	closeOnce sync.Once
}

func newWebSocket(ws *websocket.Conn, writeWait time.Duration) *websock {
	return &websock{
		readSem:   make(chan struct{}, 1),
		writeSem:  make(chan struct{}, 1),
		writeWait: writeWait,
		ws:        ws,
	}
}

// Returns the underlying websocket.
// This should only be used non-concurrently for setup, e.g. adding handlers.
func (sock *websock) Conn() *websocket.Conn {
	return sock.ws
}

// Close sends a close frame, gives the peer a moment to see it, and closes the socket,
// which unblocks a pending read. Further calls do nothing.
func (sock *websock) Close() {
	sock.closeOnce.Do(func() {
		select {
		case sock.writeSem <- struct{}{}:
			_ = sock.ws.SetWriteDeadline(time.Now().Add(sock.writeWait))
			_ = sock.ws.WriteMessage(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			<-sock.writeSem
			time.Sleep(closeGracePeriod)
		case <-time.After(writeDeadline):
		}
		sock.ws.Close()
	})
}

// Read serializes read operations on the internal web socket. The read itself may block
// for as long as the peer is quiet.
func (sock *websock) Read(
	ctx context.Context,
	readFn func(*websocket.Conn) error,
) error {
	select {
	case <-ctx.Done():
		return nil
	case sock.readSem <- struct{}{}:
		defer func() { <-sock.readSem }()
		return readFn(sock.ws)
	}
}

// Write serializes write operations to the websocket.
func (sock *websock) Write(
	ctx context.Context,
	writeFn func(*websocket.Conn) error,
) error {
	select {
	case <-ctx.Done():
		return nil
	case sock.writeSem <- struct{}{}:
		defer func() { <-sock.writeSem }()
		return writeFn(sock.ws)
	case <-time.After(writeDeadline):
		return ErrSockCongestion
	}
}
