package controller

import "gridmap/grid_world"

const outboxBacklog = 16

// Subscription receives published frames. Frames are coalesced: a slow reader only ever
// finds the latest one waiting. A peer subscription also receives start/waypoint markers
// and operator texts, which are queued.
type Subscription struct {
	c       *Controller
	frames  chan Frame
	markers chan grid_world.Marker
	texts   chan string
}

// Subscribe registers a frame-only subscription. The latest frame, if any, is waiting on it
// immediately.
func (c *Controller) Subscribe() *Subscription {
	return c.subscribe(false)
}

// SubscribePeer registers a subscription for a peer link.
func (c *Controller) SubscribePeer() *Subscription {
	return c.subscribe(true)
}

func (c *Controller) subscribe(peer bool) *Subscription {
	sub := &Subscription{
		c:      c,
		frames: make(chan Frame, 1),
	}
	if peer {
		sub.markers = make(chan grid_world.Marker, outboxBacklog)
		sub.texts = make(chan string, outboxBacklog)
	}
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	c.subs[sub] = struct{}{}
	if c.last != nil {
		sub.offer(*c.last)
	}
	return sub
}

func (sub *Subscription) Frames() <-chan Frame {
	return sub.frames
}

// Markers is nil, and so never ready, for a frame-only subscription.
func (sub *Subscription) Markers() <-chan grid_world.Marker {
	return sub.markers
}

// Texts is nil, and so never ready, for a frame-only subscription.
func (sub *Subscription) Texts() <-chan string {
	return sub.texts
}

func (sub *Subscription) peer() bool {
	return sub.texts != nil
}

// Close unregisters the subscription and closes its channels.
func (sub *Subscription) Close() {
	sub.c.subsMu.Lock()
	defer sub.c.subsMu.Unlock()
	if _, ok := sub.c.subs[sub]; !ok {
		return
	}
	delete(sub.c.subs, sub)
	close(sub.frames)
	if sub.peer() {
		close(sub.markers)
		close(sub.texts)
	}
}

// offer replaces any unread frame with f. Callers hold subsMu, so there is one sender.
func (sub *Subscription) offer(f Frame) {
	select {
	case <-sub.frames:
	default:
	}
	select {
	case sub.frames <- f:
	default:
	}
}
