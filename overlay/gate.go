// Package overlay decides what the presentation surfaces show. The Gate is
// the only writer of surface visibility.
package overlay

import (
	"sync"
	"sync/atomic"
	"time"

	"murmur/detect"
	"murmur/log"
	"murmur/ui"
)

const DefaultNotificationTTL = 3 * time.Second

type Kind string

const (
	KindSolution     Kind = "solution"
	KindExplanation  Kind = "explanation"
	KindNotification Kind = "notification"
)

type Content struct {
	Title string
	Text  string
	Code  string
}

type Request struct {
	Kind        Kind
	Content     Content
	RequestedAt time.Time
}

// Surface is a window (or terminal pane) owned by the UI context. Its
// methods are only ever called from closures posted to the ui.Executor.
type Surface interface {
	Show(c Content)
	Hide()
	IsVisible() bool
}

type Config struct {
	NotificationTTL time.Duration
	// HideWhenRecording turns suppression on detection on or off.
	HideWhenRecording bool
}

type Gate struct {
	exec         ui.Executor
	overlay      Surface
	notification Surface
	ttl          time.Duration
	enabled      bool

	suppressed atomic.Bool
	dropped    atomic.Int64

	lastMu sync.Mutex
	last   *Request

	// owned by the UI context
	notifGen uint64
}

func NewGate(exec ui.Executor, overlay, notification Surface, cfg Config) *Gate {
	if cfg.NotificationTTL <= 0 {
		cfg.NotificationTTL = DefaultNotificationTTL
	}
	return &Gate{
		exec:         exec,
		overlay:      overlay,
		notification: notification,
		ttl:          cfg.NotificationTTL,
		enabled:      cfg.HideWhenRecording,
	}
}

func (g *Gate) Suppressed() bool { return g.suppressed.Load() }

// Dropped counts show requests discarded because of suppression.
func (g *Gate) Dropped() int64 { return g.dropped.Load() }

// Watch mirrors the poller's signals into the gate.
func (g *Gate) Watch(p *detect.Poller) (unsubscribe func()) {
	return p.Subscribe(func(st detect.State) { g.SetSuppressed(st.Suspected) })
}

// SetSuppressed records the newest detection signal. Turning suppression
// on hides both surfaces; turning it off shows nothing by itself.
func (g *Gate) SetSuppressed(suspected bool) {
	if !g.enabled {
		return
	}
	was := g.suppressed.Swap(suspected)
	if !suspected || was {
		return
	}
	g.exec.Post(func() {
		g.notifGen++
		g.overlay.Hide()
		g.notification.Hide()
	})
}

// RequestShow asks for req to be displayed. It returns false when the
// request was dropped; dropped requests are never replayed.
func (g *Gate) RequestShow(req Request) bool {
	if req.RequestedAt.IsZero() {
		req.RequestedAt = time.Now()
	}
	if g.suppressed.Load() {
		g.drop(req)
		return false
	}
	g.exec.Post(func() {
		// Detection may have flipped while this closure was queued.
		if g.suppressed.Load() {
			g.drop(req)
			return
		}
		switch req.Kind {
		case KindNotification:
			g.showNotification(req.Content)
		default:
			g.overlay.Show(req.Content)
			g.lastMu.Lock()
			g.last = &req
			g.lastMu.Unlock()
		}
	})
	return true
}

func (g *Gate) drop(req Request) {
	g.dropped.Add(1)
	log.Infof("%s suppressed while recording is suspected", req.Kind)
}

func (g *Gate) showNotification(c Content) {
	g.notifGen++
	gen := g.notifGen
	g.notification.Show(c)
	time.AfterFunc(g.ttl, func() {
		g.exec.Post(func() {
			if g.notifGen == gen {
				g.notification.Hide()
			}
		})
	})
}

// Notify is shorthand for a notification request.
func (g *Gate) Notify(title, text string) bool {
	return g.RequestShow(Request{Kind: KindNotification, Content: Content{Title: title, Text: text}})
}

// Hide closes the overlay at the user's request.
func (g *Gate) Hide() {
	g.exec.Post(func() {
		g.overlay.Hide()
	})
}

// Last returns the most recently shown solution or explanation.
func (g *Gate) Last() (Request, bool) {
	g.lastMu.Lock()
	defer g.lastMu.Unlock()
	if g.last == nil {
		return Request{}, false
	}
	return *g.last, true
}
