// Package browser abstracts the browser the tracker observes. The daemon
// never talks to the browser directly; a small helper agent (an extension
// plus a localhost HTTP endpoint) reports the focused page and accepts
// navigation commands.
package browser

import (
	"context"
	"errors"
)

// ErrNoFocusedPage is returned when no page currently has focus, e.g. every
// window is closed or the browser is not running.
var ErrNoFocusedPage = errors.New("browser: no focused page")

// Inspector reports the focused page and commands navigations.
type Inspector interface {
	// FocusedURL returns the URL of the currently focused page.
	FocusedURL(ctx context.Context) (string, error)

	// Navigate commands the focused page to load target.
	Navigate(ctx context.Context, target string) error
}
