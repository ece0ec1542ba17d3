package browser

import (
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
)

// Lifecycle event names reported by Chrome for a frame.
const (
	lifecycleInit              = "init"
	lifecycleNetworkAlmostIdle = "networkAlmostIdle"
)

// loadTracker follows target events for one tab. It reports when the main
// frame's current navigation reaches network-almost-idle (at most two open
// connections for 500ms) and remembers the request that delivered the main
// document.
type loadTracker struct {
	mu      sync.Mutex
	frame   cdp.FrameID
	started bool
	idle    chan struct{}
	docReq  network.RequestID
}

func newLoadTracker() *loadTracker {
	return &loadTracker{}
}

func (t *loadTracker) setFrame(id cdp.FrameID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frame = id
}

// arm resets state for a new navigation and returns a channel that is closed
// once the navigation is network idle.
func (t *loadTracker) arm() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.started = false
	t.docReq = ""
	t.idle = make(chan struct{})
	return t.idle
}

func (t *loadTracker) documentRequest() network.RequestID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.docReq
}

// handle is registered with chromedp.ListenTarget and must not block.
func (t *loadTracker) handle(ev any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch e := ev.(type) {
	case *page.EventLifecycleEvent:
		if t.frame == "" || e.FrameID != t.frame || t.idle == nil {
			return
		}
		switch e.Name {
		case lifecycleInit:
			t.started = true
		case lifecycleNetworkAlmostIdle:
			if t.started {
				close(t.idle)
				t.idle = nil
			}
		}
	case *network.EventResponseReceived:
		if e.Type == network.ResourceTypeDocument && e.FrameID == t.frame {
			t.docReq = e.RequestID
		}
	}
}
