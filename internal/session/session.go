// Package session owns the headless-browser engine and a bounded set
// of reusable browsing sessions. No other package touches idle
// sessions directly; everything goes through Acquire, Release and
// Invalidate.
package session

import (
	"time"

	"github.com/google/uuid"
)

// WaitCondition selects what "navigation finished" means for an
// attempt. Varying it across attempts varies the request fingerprint.
type WaitCondition string

const (
	WaitDOMContentLoaded WaitCondition = "domcontentloaded"
	WaitLoad             WaitCondition = "load"
	WaitNetworkIdle      WaitCondition = "networkidle"
)

type NavigateOptions struct {
	Timeout   time.Duration
	WaitUntil WaitCondition
}

// NavigateResult carries the response status for validation. Status 0
// means the navigation produced no response at all.
type NavigateResult struct {
	Status int
}

// Page is one browsing tab capable of navigating to and rendering a
// target page. The production implementation wraps a playwright page;
// tests substitute fakes.
type Page interface {
	Navigate(url string, opts NavigateOptions) (*NavigateResult, error)
	Content() (string, error)
	Title() (string, error)
	Alive() bool
	Close() error
}

// Engine is the shared headless-browser process hosting pages.
type Engine interface {
	NewPage(identity string) (Page, error)
	OnDisconnect(fn func())
	Close() error
}

// EngineFactory creates the engine lazily on first demand, and again
// after a disconnect.
type EngineFactory func() (Engine, error)

// Session is one expensive, stateful browsing handle. While idle it
// belongs exclusively to the pool; while checked out, to exactly one
// in-flight fetch.
type Session struct {
	ID        string
	CreatedAt time.Time
	Page      Page
}

func newSession(page Page) *Session {
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		Page:      page,
	}
}

// Alive probes whether the session is still usable.
func (s *Session) Alive() bool {
	return s != nil && s.Page != nil && s.Page.Alive()
}
