package verify

import (
	"context"
	"errors"
	"log"
	"time"
)

// ErrTimeout is the expected outcome when no verification email arrives
// inside the wait window. It is a signal, not a fault: callers check it
// with errors.Is and fail the single application, never the run.
var ErrTimeout = errors.New("verification email not found before deadline")

// Waiter polls a mailbox until it finds a qualifying verification link or
// the deadline elapses. Mailbox connection failures during one cycle are
// retried on the next, inside the same overall deadline.
type Waiter struct {
	Mailbox      Mailbox
	Timeout      time.Duration
	PollInterval time.Duration
	SenderAny    []string
	SubjectAny   []string
}

func (w *Waiter) WaitForLink(ctx context.Context) (string, error) {
	timeout := w.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	poll := w.PollInterval
	if poll <= 0 {
		poll = 30 * time.Second
	}
	deadline := time.Now().Add(timeout)

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		msgs, err := w.Mailbox.Fetch(ctx)
		if err != nil {
			log.Printf("[verify] mailbox check failed, will retry: %v", err)
		} else {
			for _, msg := range msgs { // newest first
				if !MatchesHeuristics(msg, w.SenderAny, w.SubjectAny) {
					continue
				}
				if link := FindVerificationLink(msg); link != "" {
					log.Printf("[verify] found verification link in %q", msg.Subject)
					return link, nil
				}
			}
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", ErrTimeout
		}
		sleep := poll
		if sleep > remaining {
			sleep = remaining
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
}
