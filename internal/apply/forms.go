package apply

import (
	"context"
	"log"
	"sort"
	"strings"

	"applyflow-engine/internal/browser"
)

// Keywords that identify a field as belonging to an AI content category.
// Each category is filled at most once per screen; the first matching
// field wins and later matches fall through to the generic answers.
var (
	coverLetterHints = []string{"cover letter", "why are you interested", "why interested", "why do you want"}
	summaryHints     = []string{"summary", "about you", "about yourself", "tell us about"}
	skillsHints      = []string{"skills", "technologies"}
)

// fillFields fills the current screen from the generic answers merged
// with AI content. Per-field failures are logged and skipped; form
// filling is best-effort by design of the surrounding protocol (a field
// left empty either blocks on submit, which the machine reports, or is
// optional).
func (m *Machine) fillFields(ctx context.Context, page browser.Page, content Content) {
	fields, err := page.Fields(ctx)
	if err != nil {
		log.Printf("[apply] enumerate fields: %v", err)
		return
	}
	if len(fields) == 0 {
		return
	}

	// Stable iteration order over the answer keys.
	keys := make([]string, 0, len(m.Answers))
	for k := range m.Answers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	usedCover, usedSummary, usedSkills := false, false, false

	for _, f := range fields {
		fc := strings.ToLower(f.Context)
		if strings.TrimSpace(fc) == "" {
			continue
		}

		if !usedCover && content.CoverLetter != "" && hasAny(fc, coverLetterHints) {
			if m.fill(ctx, page, f, content.CoverLetter) {
				usedCover = true
				continue
			}
		}
		if !usedSummary && content.Summary != "" && hasAny(fc, summaryHints) {
			if m.fill(ctx, page, f, content.Summary) {
				usedSummary = true
				continue
			}
		}
		if !usedSkills && content.Skills != "" && hasAny(fc, skillsHints) {
			if m.fill(ctx, page, f, content.Skills) {
				usedSkills = true
				continue
			}
		}

		for _, k := range keys {
			if strings.Contains(fc, strings.ToLower(k)) {
				m.fill(ctx, page, f, m.Answers[k])
				break
			}
		}
	}
}

func (m *Machine) fill(ctx context.Context, page browser.Page, f browser.Field, text string) bool {
	if err := page.Fill(ctx, f.El, text); err != nil {
		log.Printf("[apply] fill field %q: %v", f.Context, err)
		return false
	}
	return true
}
