package config

import (
	"fmt"
	"strings"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// NormalizeAndValidate returns a normalized copy plus everything a user
// should fix or know about before a run starts.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	trimList := func(xs []string) []string {
		seen := map[string]bool{}
		var ys []string
		for _, x := range xs {
			x = strings.TrimSpace(x)
			if x == "" {
				continue
			}
			key := strings.ToLower(x)
			if seen[key] {
				continue
			}
			seen[key] = true
			ys = append(ys, x)
		}
		return ys
	}

	out.Search.Keywords = trimList(out.Search.Keywords)
	out.Search.Locations = trimList(out.Search.Locations)
	out.Email.SenderAny = trimList(out.Email.SenderAny)
	out.Email.SubjectAny = trimList(out.Email.SubjectAny)

	// ---- Defaults ----

	if out.App.LedgerBackend == "" {
		out.App.LedgerBackend = "sqlite"
	}
	if out.Application.StepCap <= 0 {
		out.Application.StepCap = 5
	}
	if out.Email.Mailbox == "" {
		out.Email.Mailbox = "INBOX"
	}
	if out.Email.TimeoutSeconds <= 0 {
		out.Email.TimeoutSeconds = 300
	}
	if out.Email.PollSeconds <= 0 {
		out.Email.PollSeconds = 30
	}
	if out.AI.RelevanceThreshold <= 0 {
		out.AI.RelevanceThreshold = 6
	}

	// ---- Validation rules ----

	switch out.App.LedgerBackend {
	case "sqlite", "csv":
	default:
		res.addErr("app.ledger_backend must be 'sqlite' or 'csv', got %q", out.App.LedgerBackend)
	}

	enabled := 0
	for name, p := range out.Platforms {
		if !p.Enabled {
			continue
		}
		enabled++
		if p.MaxApplications <= 0 {
			res.addErr("platforms.%s.max_applications must be > 0", name)
		}
		if p.MaxApplications > 50 {
			res.addWarn("platforms.%s.max_applications is very high (%d); most platforms throttle well before that.", name, p.MaxApplications)
		}
	}
	if enabled == 0 {
		res.addErr("no platforms enabled")
	}

	if len(out.Search.Keywords) == 0 {
		res.addWarn("search.keywords is empty; sources may return nothing.")
	}

	if out.Email.Enabled {
		if strings.TrimSpace(out.Email.IMAPHost) == "" {
			res.addErr("email.imap_host is required when email.enabled=true")
		}
		if strings.TrimSpace(out.Email.Username) == "" {
			res.addErr("email.username is required when email.enabled=true")
		}
		if len(out.Email.SenderAny) == 0 && len(out.Email.SubjectAny) == 0 {
			res.addWarn("email.sender_any and email.subject_any are both empty; verification emails may not be recognized.")
		}
		if out.Email.PollSeconds >= out.Email.TimeoutSeconds {
			res.addWarn("email.poll_seconds (%d) >= email.timeout_seconds (%d); at most one mailbox check will happen per wait.",
				out.Email.PollSeconds, out.Email.TimeoutSeconds)
		}
	}

	if out.AI.Enabled {
		if out.AI.RelevanceThreshold > 10 {
			res.addErr("ai.relevance_threshold must be 1..10")
		}
		if strings.TrimSpace(out.AI.Model) == "" {
			res.addWarn("ai.model is empty; the provider default will be used.")
		}
	}

	if out.Report.Enabled && strings.TrimSpace(out.Report.DatabaseID) == "" {
		res.addErr("report.database_id is required when report.enabled=true")
	}

	return out, res
}
