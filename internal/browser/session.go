package browser

import (
	"context"

	"github.com/aaronvstory/ReadySearch/internal/extract"
)

// Dialog is a native browser dialog (alert/confirm) observed on the page.
// The driver auto-accepts them; the recorded message lets the dialog
// resolver account for what was dismissed.
type Dialog struct {
	Message string
	Kind    string
}

// Session is the browser contract the workflow and dialog resolver drive.
// Implementations map their failures onto the error taxonomy: navigation
// timeouts become NavigationError, wait timeouts ElementNotFoundError, and
// a dead target SessionCrashError.
type Session interface {
	// Navigate loads url and waits for the document to be ready.
	Navigate(ctx context.Context, url string) error
	// WaitVisible blocks until an element matching sel is visible.
	WaitVisible(ctx context.Context, sel string) error
	// Fill sets the value of the input matching sel.
	Fill(ctx context.Context, sel, value string) error
	// SelectOption picks the option with the given value on a select box.
	SelectOption(ctx context.Context, sel, value string) error
	// Click clicks the first visible element matching sel.
	Click(ctx context.Context, sel string) error
	// ClickAt clicks viewport coordinates, used for backdrop dismissal.
	ClickAt(ctx context.Context, x, y float64) error
	// SendEscape sends the Escape key to the page.
	SendEscape(ctx context.Context) error
	// Visible reports whether an element matching sel is currently shown.
	Visible(ctx context.Context, sel string) (bool, error)
	// Enabled reports whether the element matching sel accepts input.
	Enabled(ctx context.Context, sel string) (bool, error)
	// Text returns the inner text of the first element matching sel.
	Text(ctx context.Context, sel string) (string, error)
	// Snapshot captures the rendered results surface in one evaluation.
	Snapshot(ctx context.Context) (extract.Surface, error)
	// PendingDialog pops the oldest unconsumed native dialog, if any.
	PendingDialog() (Dialog, bool)
	// Crashed reports whether the session became unusable.
	Crashed() bool
	// Close releases the session and its browser resources.
	Close() error
}
