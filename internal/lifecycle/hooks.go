// Package lifecycle coordinates the demo binary's teardown: the widget
// session, the Sentry flush, and any other registered cleanup run in parallel
// under one deadline.
package lifecycle

import "context"

// Hook is one named teardown step, e.g. "widget" or "sentry".
type Hook struct {
	Name string
	Fn   func(ctx context.Context) error
}
