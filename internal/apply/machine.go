// Package apply drives one job application to a terminal outcome through
// a bounded number of form screens, interleaving page interaction with
// the email-verification sub-protocol.
package apply

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"applyflow-engine/internal/browser"
	"applyflow-engine/internal/verify"
)

type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeFailed
)

func (o Outcome) String() string {
	if o == OutcomeCompleted {
		return "completed"
	}
	return "failed"
}

const (
	ReasonBudgetExhausted     = "step budget exhausted"
	ReasonVerificationTimeout = "verification timeout"
	ReasonVerificationFailed  = "verification failed"
	ReasonStuck               = "no next or submit affordance"
	ReasonNoConfirmation      = "no confirmation after submit"
)

type Result struct {
	Outcome  Outcome
	Steps    int    // form-advance iterations consumed
	Verified bool   // an email verification round happened
	Reason   string // set when Outcome == OutcomeFailed
}

// Verifier is the out-of-band verification sub-protocol. *verify.Waiter
// satisfies it.
type Verifier interface {
	WaitForLink(ctx context.Context) (string, error)
}

// Content carries optional AI-generated text. Any empty field falls back
// to the configured generic answers.
type Content struct {
	CoverLetter string
	Summary     string
	Skills      string
}

// Machine is reusable across jobs; all per-attempt state lives on the
// stack of Run.
type Machine struct {
	StepCap  int // 0 = 5
	Answers  map[string]string
	Verifier Verifier // nil disables the verification branch
}

// Markers the platforms use on their "application submitted" screens.
var successMarkers = []string{
	"application submitted",
	"thank you for applying",
	"application received",
	"successfully submitted",
	"application complete",
	"we'll be in touch",
	"application sent",
}

var verificationContentMarkers = []string{
	"verify your email",
	"check your email",
	"verification link",
	"confirm your application",
}

// Run advances the application until Completed, Failed, or the step cap.
// Termination is guaranteed: every loop iteration either returns or
// consumes one unit of the finite budget.
func (m *Machine) Run(ctx context.Context, page browser.Page) Result {
	return m.RunWithContent(ctx, page, Content{})
}

func (m *Machine) RunWithContent(ctx context.Context, page browser.Page, content Content) Result {
	stepCap := m.StepCap
	if stepCap <= 0 {
		stepCap = 5
	}

	// Job URLs usually land on the posting itself; the form only opens
	// once the apply affordance is clicked. A page that is already inside
	// the flow has no such affordance and is left alone.
	if el, ok := page.Find(ctx, browser.IntentApply); ok {
		if err := page.Click(ctx, el); err != nil {
			return Result{Outcome: OutcomeFailed, Reason: fmt.Sprintf("click apply: %v", err)}
		}
	}

	verified := false
	for steps := 0; ; steps++ {
		if err := ctx.Err(); err != nil {
			return Result{Outcome: OutcomeFailed, Steps: steps, Verified: verified, Reason: err.Error()}
		}

		body, err := page.Content(ctx)
		if err != nil {
			return Result{Outcome: OutcomeFailed, Steps: steps, Verified: verified,
				Reason: fmt.Sprintf("read page: %v", err)}
		}
		lower := strings.ToLower(body)

		if hasAny(lower, successMarkers) {
			return Result{Outcome: OutcomeCompleted, Steps: steps, Verified: verified}
		}

		if steps >= stepCap {
			return Result{Outcome: OutcomeFailed, Steps: steps, Verified: verified, Reason: ReasonBudgetExhausted}
		}

		if hasAny(lower, verificationContentMarkers) {
			res, ok := m.handleVerification(ctx, page, steps)
			if !ok {
				return res
			}
			verified = true
			continue
		}

		m.fillFields(ctx, page, content)

		if el, ok := page.Find(ctx, browser.IntentNext); ok {
			if err := page.Click(ctx, el); err != nil {
				return Result{Outcome: OutcomeFailed, Steps: steps, Verified: verified,
					Reason: fmt.Sprintf("click next: %v", err)}
			}
			continue
		}

		if el, ok := page.Find(ctx, browser.IntentSubmit); ok {
			if err := page.Click(ctx, el); err != nil {
				return Result{Outcome: OutcomeFailed, Steps: steps, Verified: verified,
					Reason: fmt.Sprintf("click submit: %v", err)}
			}
			// Submit is always the last action attempted: re-check the
			// terminal marker once and stop either way.
			body, err := page.Content(ctx)
			if err == nil && hasAny(strings.ToLower(body), successMarkers) {
				return Result{Outcome: OutcomeCompleted, Steps: steps + 1, Verified: verified}
			}
			return Result{Outcome: OutcomeFailed, Steps: steps + 1, Verified: verified, Reason: ReasonNoConfirmation}
		}

		return Result{Outcome: OutcomeFailed, Steps: steps, Verified: verified, Reason: ReasonStuck}
	}
}

// handleVerification runs the waiter and navigates to the link it finds.
// ok=false carries the terminal result; verification failure is not
// retried within the same attempt.
func (m *Machine) handleVerification(ctx context.Context, page browser.Page, steps int) (Result, bool) {
	if m.Verifier == nil {
		return Result{Outcome: OutcomeFailed, Steps: steps, Reason: ReasonVerificationFailed}, false
	}

	log.Printf("[apply] verification screen detected, waiting for email")
	link, err := m.Verifier.WaitForLink(ctx)
	if err != nil {
		reason := ReasonVerificationFailed
		if errors.Is(err, verify.ErrTimeout) {
			reason = ReasonVerificationTimeout
		}
		return Result{Outcome: OutcomeFailed, Steps: steps, Reason: reason}, false
	}

	if err := page.Navigate(ctx, link); err != nil {
		return Result{Outcome: OutcomeFailed, Steps: steps,
			Reason: fmt.Sprintf("open verification link: %v", err)}, false
	}
	return Result{}, true
}

func hasAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
