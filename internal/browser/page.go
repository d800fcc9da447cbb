// Package browser defines the page-interaction capability the application
// state machine drives. Selector strategy lives entirely behind Find; the
// rest of the system never sees a CSS selector.
package browser

import "context"

// Intent names what the caller wants, not how to locate it.
type Intent string

const (
	IntentApply  Intent = "apply"  // the affordance that opens the application flow
	IntentNext   Intent = "next"   // next/continue/review
	IntentSubmit Intent = "submit" // the terminal submit affordance
)

// Element is an opaque handle owned by the Page implementation.
type Element interface{}

// Field is a fillable form control plus the lowercase text surrounding it
// (placeholder, name, label) used for heuristic matching.
type Field struct {
	El      Element
	Context string
}

type Page interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL() string
	Content(ctx context.Context) (string, error)
	Find(ctx context.Context, intent Intent) (Element, bool)
	Click(ctx context.Context, el Element) error
	Fill(ctx context.Context, el Element, text string) error
	// Fields enumerates the visible fillable controls of the current
	// screen, document order.
	Fields(ctx context.Context) ([]Field, error)
}
