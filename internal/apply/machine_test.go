package apply

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"applyflow-engine/internal/browser"
	"applyflow-engine/internal/verify"
)

type fakeEl string

// screen is one scripted page state. nextTo/submitTo say where a click
// on the respective affordance lands.
type screen struct {
	body      string
	hasApply  bool
	hasNext   bool
	hasSubmit bool
	applyTo   int
	nextTo    int
	submitTo  int
	fields    []browser.Field
}

type fakePage struct {
	screens     []screen
	idx         int
	navTo       map[string]int
	navigations []string
	filled      map[fakeEl]string
}

func newFakePage(screens ...screen) *fakePage {
	return &fakePage{
		screens: screens,
		navTo:   map[string]int{},
		filled:  map[fakeEl]string{},
	}
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.navigations = append(p.navigations, url)
	if i, ok := p.navTo[url]; ok {
		p.idx = i
	}
	return nil
}

func (p *fakePage) CurrentURL() string {
	return fmt.Sprintf("https://example.com/screen/%d", p.idx)
}

func (p *fakePage) Content(ctx context.Context) (string, error) {
	return p.screens[p.idx].body, nil
}

func (p *fakePage) Find(ctx context.Context, intent browser.Intent) (browser.Element, bool) {
	s := p.screens[p.idx]
	switch intent {
	case browser.IntentApply:
		if s.hasApply {
			return fakeEl("apply"), true
		}
	case browser.IntentNext:
		if s.hasNext {
			return fakeEl("next"), true
		}
	case browser.IntentSubmit:
		if s.hasSubmit {
			return fakeEl("submit"), true
		}
	}
	return nil, false
}

func (p *fakePage) Click(ctx context.Context, el browser.Element) error {
	s := p.screens[p.idx]
	switch el {
	case fakeEl("apply"):
		p.idx = s.applyTo
	case fakeEl("next"):
		p.idx = s.nextTo
	case fakeEl("submit"):
		p.idx = s.submitTo
	}
	return nil
}

func (p *fakePage) Fill(ctx context.Context, el browser.Element, text string) error {
	p.filled[el.(fakeEl)] = text
	return nil
}

func (p *fakePage) Fields(ctx context.Context) ([]browser.Field, error) {
	return p.screens[p.idx].fields, nil
}

type fakeVerifier struct {
	link  string
	err   error
	calls int
}

func (f *fakeVerifier) WaitForLink(ctx context.Context) (string, error) {
	f.calls++
	return f.link, f.err
}

func TestRunSingleScreenSubmit(t *testing.T) {
	page := newFakePage(
		screen{body: "application form", hasSubmit: true, submitTo: 1},
		screen{body: "Application submitted. Thank you!"},
	)
	m := &Machine{}

	res := m.Run(context.Background(), page)

	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, 1, res.Steps)
	assert.False(t, res.Verified)
}

func TestRunOpensApplicationFlowFromPostingPage(t *testing.T) {
	page := newFakePage(
		screen{body: "Senior Backend Engineer at Acme. Great benefits.", hasApply: true, applyTo: 1},
		screen{body: "application form", hasSubmit: true, submitTo: 2},
		screen{body: "application submitted"},
	)
	m := &Machine{}

	res := m.Run(context.Background(), page)

	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, 1, res.Steps, "opening the flow does not consume form steps")
}

func TestRunVerificationMidFlow(t *testing.T) {
	link := "https://boards.greenhouse.io/acme/verify/tok"
	page := newFakePage(
		screen{body: "step one of two", hasNext: true, nextTo: 1},
		screen{body: "Almost there! Please verify your email to continue."},
		screen{body: "step two of two", hasNext: true, nextTo: 3},
		screen{body: "application received"},
	)
	page.navTo[link] = 2
	v := &fakeVerifier{link: link}
	m := &Machine{Verifier: v}

	res := m.Run(context.Background(), page)

	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, 3, res.Steps)
	assert.True(t, res.Verified)
	assert.Equal(t, 1, v.calls)
	require.Len(t, page.navigations, 1)
	assert.Equal(t, link, page.navigations[0])
}

func TestRunVerificationTimeout(t *testing.T) {
	page := newFakePage(
		screen{body: "check your email for a verification link"},
	)
	m := &Machine{Verifier: &fakeVerifier{err: verify.ErrTimeout}}

	res := m.Run(context.Background(), page)

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, ReasonVerificationTimeout, res.Reason)
	assert.False(t, res.Verified)
	assert.Empty(t, page.navigations)
}

func TestRunVerificationScreenWithoutVerifier(t *testing.T) {
	page := newFakePage(
		screen{body: "please verify your email"},
	)
	m := &Machine{}

	res := m.Run(context.Background(), page)

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, ReasonVerificationFailed, res.Reason)
}

func TestRunBudgetExhausted(t *testing.T) {
	// A screen whose next button leads back to itself never terminates on
	// its own; the budget has to cut it off.
	page := newFakePage(
		screen{body: "endless form", hasNext: true, nextTo: 0},
	)
	m := &Machine{StepCap: 3}

	res := m.Run(context.Background(), page)

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, ReasonBudgetExhausted, res.Reason)
	assert.Equal(t, 3, res.Steps)
}

func TestRunStuckScreen(t *testing.T) {
	page := newFakePage(
		screen{body: "nothing clickable here"},
	)
	m := &Machine{}

	res := m.Run(context.Background(), page)

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, ReasonStuck, res.Reason)
	assert.Equal(t, 0, res.Steps)
}

func TestRunSubmitWithoutConfirmation(t *testing.T) {
	page := newFakePage(
		screen{body: "final review", hasSubmit: true, submitTo: 1},
		screen{body: "something went wrong"},
	)
	m := &Machine{}

	res := m.Run(context.Background(), page)

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, ReasonNoConfirmation, res.Reason)
	assert.Equal(t, 1, res.Steps)
}

func TestRunAlreadySubmittedScreen(t *testing.T) {
	page := newFakePage(
		screen{body: "We'll be in touch soon."},
	)
	m := &Machine{}

	res := m.Run(context.Background(), page)

	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, 0, res.Steps)
}

func TestRunContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	page := newFakePage(screen{body: "form", hasNext: true})
	m := &Machine{}

	res := m.Run(ctx, page)

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, 0, res.Steps)
}
