package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"gridmap/controller"
	"gridmap/grid_world"
	"gridmap/server/fastview"
	"gridmap/server/peerlink"
	"gridmap/server/root_view"
	"gridmap/snapshot"

	channerics "github.com/niceyeti/channerics/channels"
)

const statusTimeout = time.Second

// servePeer links the remote robot: its messages are submitted to the controller, and it
// receives every published message, start/waypoint marker and operator text. The link's
// lifetime is recorded as the connection status.
func (server *Server) servePeer(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub := server.ctrl.SubscribePeer()
	defer sub.Close()

	link, err := peerlink.Upgrade[any](
		w, r,
		server.linkCfg,
		peerUpdates(ctx.Done(), sub),
		server.onPeerMessage)
	if err != nil {
		server.log.WithError(err).Warn("peer link refused")
		return
	}

	if err = server.ctrl.PeerConnected(ctx, r.RemoteAddr); err != nil {
		server.log.WithError(err).Warn("failed to record peer connection")
	}
	defer func() {
		// The link's context is gone by now.
		statusCtx, cancelStatus := context.WithTimeout(context.Background(), statusTimeout)
		defer cancelStatus()
		if err := server.ctrl.PeerDisconnected(statusCtx); err != nil && !errors.Is(err, controller.ErrStopped) {
			server.log.WithError(err).Warn("failed to record peer disconnection")
		}
	}()
	_ = link.Sync(ctx)
}

// peerUpdates merges the subscription's frames, as outbound messages, with its markers and
// texts.
func peerUpdates(done <-chan struct{}, sub *controller.Subscription) <-chan any {
	messages := channerics.Convert(done, sub.Frames(), func(f controller.Frame) any {
		return f.Message
	})
	markers := channerics.Convert(done, sub.Markers(), func(m grid_world.Marker) any {
		return m
	})
	texts := channerics.Convert(done, sub.Texts(), func(text string) any {
		return peerlink.Text(text)
	})
	return channerics.Merge(done, messages, markers, texts)
}

// onPeerMessage submits a peer message. A malformed message is dropped without closing the
// link; the controller has already logged it.
func (server *Server) onPeerMessage(ctx context.Context, msg []byte) error {
	err := server.ctrl.Submit(ctx, msg)
	var decodeErr *snapshot.DecodeError
	if errors.As(err, &decodeErr) {
		return nil
	}
	return err
}

// serveViewer links a map page: it receives the page's ele-updates and sends nothing.
func (server *Server) serveViewer(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub := server.ctrl.Subscribe()
	defer sub.Close()

	rv, err := root_view.NewRootView(ctx, sub.Frames())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	link, err := peerlink.Upgrade[[]fastview.EleUpdate](
		w, r,
		server.linkCfg,
		rv.Updates(),
		nil)
	if err != nil {
		server.log.WithError(err).Warn("viewer link refused")
		return
	}
	_ = link.Sync(ctx)
}
