// controller owns the map session. Every change to the session, whether from the peer or
// from the operator, is an op processed to completion on the goroutine running Run; no
// other goroutine touches the session.
package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gridmap/grid_world"
	"gridmap/logger"
	"gridmap/models"
	"gridmap/settings"
	"gridmap/snapshot"

	channerics "github.com/niceyeti/channerics/channels"
	"github.com/sirupsen/logrus"
)

// Mode selects when peer updates are applied.
type Mode uint8

const (
	// Auto applies each peer update as it arrives.
	Auto Mode = iota
	// Manual holds the latest peer update until the operator refreshes.
	Manual
)

func (m Mode) String() string {
	if m == Manual {
		return "manual"
	}
	return "auto"
}

var ErrUnknownMode = errors.New("unknown mode")

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "auto":
		return Auto, nil
	case "manual":
		return Manual, nil
	}
	return Auto, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// ErrStopped is returned by requests made after Run has exited.
var ErrStopped = errors.New("controller stopped")

var (
	ErrNoPeer        = errors.New("no peer connected")
	ErrEmptyText     = errors.New("text is empty")
	ErrUnknownPreset = errors.New("unknown preset")
)

// DefaultConnStatus is the connection status while no peer is linked.
const DefaultConnStatus = "None"

const persistTimeout = 500 * time.Millisecond

// Frame is one published state of the session.
type Frame struct {
	Message snapshot.Message
	Grid    *grid_world.Grid
	Mode    Mode
	// Pending is set while a peer update waits for a refresh.
	Pending bool
	// ConnStatus names the linked peer, or is DefaultConnStatus.
	ConnStatus string
}

type op struct {
	name    string
	mutates bool
	fn      func() error
	reply   chan error
}

type inbound struct {
	raw   []byte
	reply chan error
}

type Controller struct {
	session *grid_world.Session
	store   settings.Store
	log     *logrus.Entry

	ops     chan op
	inbound chan inbound
	done    chan struct{}

	// Owned by Run.
	mode       Mode
	pending    *snapshot.Update
	markers    []grid_world.Marker
	peers      int
	connStatus string

	subsMu sync.Mutex
	subs   map[*Subscription]struct{}
	last   *Frame
}

// New returns a controller over a fresh session built with opts.
func New(store settings.Store, mode Mode, opts ...grid_world.Option) *Controller {
	c := &Controller{
		store:   store,
		log:     logger.Log.WithField("component", "controller"),
		ops:     make(chan op),
		inbound: make(chan inbound),
		done:    make(chan struct{}),
		mode:    mode,
		subs:    map[*Subscription]struct{}{},

		connStatus: DefaultConnStatus,
	}
	opts = append(opts, grid_world.WithMarkers(func(m grid_world.Marker) {
		c.markers = append(c.markers, m)
	}))
	c.session = grid_world.NewSession(opts...)
	return c
}

// Run processes ops until ctx is cancelled. Peer messages are decoded off the owner
// goroutine and merged with operator requests into a single queue.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)
	done := ctx.Done()

	c.log.WithField("mode", c.mode).Info("controller started")
	c.publish()

	var (
		requests <-chan op      = c.ops
		messages <-chan inbound = c.inbound
	)
	peerOps := channerics.Convert(done, messages, c.peerOp)
	for o := range channerics.Merge(done, channerics.OrDone(done, requests), peerOps) {
		err := o.fn()
		if err != nil {
			c.log.WithError(err).WithField("op", o.name).Debug("op failed")
		}
		if o.mutates {
			c.flushMarkers()
			if err == nil {
				c.publish()
			}
		}
		if o.reply != nil {
			o.reply <- err
		}
	}

	c.log.Info("controller stopped")
	return nil
}

// do submits fn to the owner goroutine and waits for it to complete.
func (c *Controller) do(ctx context.Context, name string, mutates bool, fn func() error) error {
	o := op{
		name:    name,
		mutates: mutates,
		fn:      fn,
		reply:   make(chan error, 1),
	}
	select {
	case c.ops <- o:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrStopped
	}
	select {
	case err := <-o.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrStopped
	}
}

// Submit hands a raw peer message to the controller and waits until it has been decoded
// and applied (or held, in manual mode). A malformed message is returned as a
// *snapshot.DecodeError and changes nothing.
func (c *Controller) Submit(ctx context.Context, raw []byte) error {
	in := inbound{raw: raw, reply: make(chan error, 1)}
	select {
	case c.inbound <- in:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrStopped
	}
	select {
	case err := <-in.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrStopped
	}
}

// peerOp decodes a peer message into an op. It runs on the conversion goroutine, so it
// must not touch the session; decoding needs nothing from it.
func (c *Controller) peerOp(in inbound) op {
	update, parseErr := snapshot.ParseUpdate(in.raw)
	return op{
		name:    "peer",
		mutates: true,
		reply:   in.reply,
		fn: func() error {
			c.persist(settings.ReceivedText, string(in.raw))
			if parseErr != nil {
				c.log.WithError(parseErr).WithField("bytes", len(in.raw)).Warn("dropped malformed peer message")
				return parseErr
			}
			if c.mode == Manual {
				c.pending = &update
				c.log.Debug("peer update held for refresh")
				return nil
			}
			c.apply(update)
			return nil
		},
	}
}

func (c *Controller) apply(u snapshot.Update) {
	before := len(c.session.Annotations())
	applied := u.Apply(c.session)

	if applied.RobotPlaced {
		c.persist(settings.Direction, c.session.Robot().HeadingLabel())
	}
	for _, a := range c.session.Annotations()[before:] {
		c.logImage(a)
	}
	c.log.WithFields(logrus.Fields{
		"robot":          applied.RobotPlaced,
		"cells":          applied.Cells,
		"imagesAccepted": applied.ImagesAccepted,
		"imagesRejected": applied.ImagesRejected,
		"status":         applied.Status,
	}).Debug("peer update applied")
}

// Move runs one robot command.
func (c *Controller) Move(ctx context.Context, cmd models.Command) (res grid_world.MoveResult, err error) {
	err = c.do(ctx, "move", true, func() (moveErr error) {
		if res, moveErr = c.session.Move(cmd); moveErr != nil {
			return
		}
		entry := c.log.WithFields(logrus.Fields{
			"command": cmd,
			"from":    res.From,
			"to":      res.To,
			"blocked": res.Blocked,
		})
		if res.Blocked == grid_world.BlockedFault {
			entry.WithField("heading", c.session.Robot().HeadingLabel()).Warn("robot heading fault")
		} else {
			entry.Debug("robot moved")
		}
		c.persist(settings.Direction, c.session.Robot().HeadingLabel())
		return
	})
	return
}

// SetStart commits the start coordinate (logical) and places the robot there.
func (c *Controller) SetStart(ctx context.Context, at models.Coord) error {
	return c.do(ctx, "start", true, func() error {
		if err := c.session.PlaceStart(at.Board()); err != nil {
			return err
		}
		c.persist(settings.Direction, c.session.Robot().HeadingLabel())
		return nil
	})
}

func (c *Controller) SetWaypoint(ctx context.Context, at models.Coord) error {
	return c.do(ctx, "waypoint", true, func() error {
		return c.session.SetWaypoint(at.Board())
	})
}

func (c *Controller) MarkObstacle(ctx context.Context, at models.Coord) error {
	return c.do(ctx, "obstacle", true, func() error {
		return c.session.MarkObstacle(at.Board())
	})
}

func (c *Controller) MarkExplored(ctx context.Context, at models.Coord) error {
	return c.do(ctx, "explored", true, func() error {
		return c.session.MarkExplored(at.Board())
	})
}

func (c *Controller) Unset(ctx context.Context, at models.Coord) error {
	return c.do(ctx, "unset", true, func() error {
		return c.session.UnsetCell(at.Board())
	})
}

// AddAnnotation reports whether the annotation was accepted.
func (c *Controller) AddAnnotation(ctx context.Context, a models.Annotation) (accepted bool, err error) {
	err = c.do(ctx, "image", true, func() (addErr error) {
		if accepted, addErr = c.session.AddAnnotation(a); accepted {
			c.logImage(a)
		}
		return
	})
	return
}

// Reset returns the session to its virgin state, drops any held update, clears the
// persisted session settings and falls back to manual mode. Presets and the connection
// status are kept.
func (c *Controller) Reset(ctx context.Context) error {
	return c.do(ctx, "reset", true, func() error {
		c.session.Reset()
		c.pending = nil
		c.mode = Manual
		pctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := c.store.Delete(pctx, settings.Direction, settings.ImageLog, settings.ReceivedText, settings.SentText); err != nil {
			c.log.WithError(err).Warn("failed to clear settings")
		}
		c.log.Info("session reset")
		return nil
	})
}

// SetMode switches modes. Switching to auto applies a held update.
func (c *Controller) SetMode(ctx context.Context, mode Mode) error {
	return c.do(ctx, "mode", true, func() error {
		c.mode = mode
		if mode == Auto {
			c.applyPending()
		}
		c.log.WithField("mode", mode).Info("mode changed")
		return nil
	})
}

// Refresh applies the held update, if any, and reports whether there was one.
func (c *Controller) Refresh(ctx context.Context) (applied bool, err error) {
	err = c.do(ctx, "refresh", true, func() error {
		applied = c.applyPending()
		return nil
	})
	return
}

func (c *Controller) applyPending() bool {
	if c.pending == nil {
		return false
	}
	u := *c.pending
	c.pending = nil
	c.apply(u)
	return true
}

// Snapshot returns the current frame without changing anything.
func (c *Controller) Snapshot(ctx context.Context) (f Frame, err error) {
	err = c.do(ctx, "snapshot", false, func() error {
		f = c.frame()
		return nil
	})
	return
}

func (c *Controller) frame() Frame {
	return Frame{
		Message: snapshot.Build(c.session),
		Grid:    c.session.Grid().Clone(),
		Mode:    c.mode,
		Pending: c.pending != nil,

		ConnStatus: c.connStatus,
	}
}

// persist writes a setting, best effort.
func (c *Controller) persist(key, value string) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := c.store.Set(ctx, key, value); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("failed to persist setting")
	}
}

// logImage appends an accepted annotation to the persisted image log.
func (c *Controller) logImage(a models.Annotation) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	prev, err := c.store.Get(ctx, settings.ImageLog)
	if err != nil && !errors.Is(err, settings.ErrNotFound) {
		c.log.WithError(err).Warn("failed to read image log")
		return
	}
	if err := c.store.Set(ctx, settings.ImageLog, prev+"\n "+a.String()); err != nil {
		c.log.WithError(err).Warn("failed to persist image log")
	}
	c.log.WithField("image", a.String()).Info("image recorded")
}

// flushMarkers hands markers queued by the last op to every peer subscription.
func (c *Controller) flushMarkers() {
	if len(c.markers) == 0 {
		return
	}
	markers := c.markers
	c.markers = nil

	c.subsMu.Lock()
	for sub := range c.subs {
		if !sub.peer() {
			continue
		}
		for _, m := range markers {
			select {
			case sub.markers <- m:
			default:
				c.log.WithField("marker", m).Warn("subscriber congested, marker dropped")
			}
		}
	}
	c.subsMu.Unlock()
}

func (c *Controller) publish() {
	f := c.frame()
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	c.last = &f
	for sub := range c.subs {
		sub.offer(f)
	}
}

// Send queues free text for every linked peer and records it as the last sent text.
func (c *Controller) Send(ctx context.Context, text string) error {
	if text == "" {
		return ErrEmptyText
	}
	return c.do(ctx, "send", false, func() error {
		c.subsMu.Lock()
		sent := 0
		for sub := range c.subs {
			if !sub.peer() {
				continue
			}
			select {
			case sub.texts <- text:
				sent++
			default:
				c.log.Warn("peer congested, text dropped")
			}
		}
		c.subsMu.Unlock()

		if sent == 0 {
			return ErrNoPeer
		}
		c.persist(settings.SentText, text)
		c.log.WithField("bytes", len(text)).Info("text sent")
		return nil
	})
}

func presetKey(name string) (string, error) {
	switch strings.ToUpper(name) {
	case settings.PresetF1:
		return settings.PresetF1, nil
	case settings.PresetF2:
		return settings.PresetF2, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPreset, name)
}

// Preset returns the text stored under the preset name (F1 or F2); an unset preset is empty.
// Presets live only in the settings store, so they are read without going through Run.
func (c *Controller) Preset(ctx context.Context, name string) (string, error) {
	key, err := presetKey(name)
	if err != nil {
		return "", err
	}
	text, err := c.store.Get(ctx, key)
	if errors.Is(err, settings.ErrNotFound) {
		return "", nil
	}
	return text, err
}

func (c *Controller) SetPreset(ctx context.Context, name, text string) error {
	key, err := presetKey(name)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, key, text)
}

// SendPreset sends the text stored under the preset name.
func (c *Controller) SendPreset(ctx context.Context, name string) error {
	text, err := c.Preset(ctx, name)
	if err != nil {
		return err
	}
	return c.Send(ctx, text)
}

// PeerConnected records a newly linked peer as the connection status.
func (c *Controller) PeerConnected(ctx context.Context, remote string) error {
	return c.do(ctx, "connect", true, func() error {
		c.peers++
		c.setConnStatus("Connected to " + remote)
		return nil
	})
}

// PeerDisconnected records a peer leaving. The status returns to DefaultConnStatus once no
// peer is left.
func (c *Controller) PeerDisconnected(ctx context.Context) error {
	return c.do(ctx, "disconnect", true, func() error {
		if c.peers > 0 {
			c.peers--
		}
		if c.peers == 0 {
			c.setConnStatus(DefaultConnStatus)
		}
		return nil
	})
}

func (c *Controller) setConnStatus(status string) {
	c.connStatus = status
	c.persist(settings.ConnStatus, status)
	c.log.WithField("connStatus", status).Info("connection status changed")
}
