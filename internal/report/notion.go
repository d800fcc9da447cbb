package report

import (
	"context"
	"fmt"
	"log"

	gnt "github.com/dstotijn/go-notion"

	"applyflow-engine/internal/domain"
)

// Notion writes one row per submitted application into a tracker database.
type Notion struct {
	api        *gnt.Client
	databaseID string
}

func NewNotion(token, databaseID string) *Notion {
	return &Notion{
		api:        gnt.NewClient(token),
		databaseID: databaseID,
	}
}

// Ping tries a tiny QueryDatabase to see if the DB is reachable.
func (n *Notion) Ping(ctx context.Context) error {
	_, err := n.api.QueryDatabase(ctx, n.databaseID, &gnt.DatabaseQuery{
		PageSize: 1,
	})
	return err
}

func (n *Notion) Report(ctx context.Context, summary domain.RunSummary) error {
	var firstErr error
	rows := 0
	for _, p := range summary.Platforms {
		for _, job := range p.AppliedJobs {
			props := buildRowProperties(p.Platform, summary.RunID, job)
			_, err := n.api.CreatePage(ctx, gnt.CreatePageParams{
				ParentType:             gnt.ParentTypeDatabase,
				ParentID:               n.databaseID,
				DatabasePageProperties: &props,
			})
			if err != nil {
				log.Printf("[report] notion row for %q failed: %v", job.Title, err)
				if firstErr == nil {
					firstErr = fmt.Errorf("create page: %w", err)
				}
				continue
			}
			rows++
		}
	}
	props := summaryRowProperties(summary)
	if _, err := n.api.CreatePage(ctx, gnt.CreatePageParams{
		ParentType:             gnt.ParentTypeDatabase,
		ParentID:               n.databaseID,
		DatabasePageProperties: &props,
	}); err != nil {
		log.Printf("[report] notion summary row failed: %v", err)
		if firstErr == nil {
			firstErr = fmt.Errorf("create summary page: %w", err)
		}
	}

	log.Printf("[report] run %s: %d rows written to notion", summary.RunID, rows)
	return firstErr
}

// summaryRowProperties renders the whole run as one extra row so a
// glance at the table shows per-run totals without a separate database.
func summaryRowProperties(summary domain.RunSummary) gnt.DatabasePageProperties {
	notes := fmt.Sprintf("%d found, %d submitted, %d errors, %d platforms",
		summary.JobsFound, summary.Submitted, summary.Errors, len(summary.Platforms))
	return gnt.DatabasePageProperties{
		"Position": gnt.DatabasePageProperty{
			Title: richText("Run summary " + summary.StartedAt.Format("2006-01-02 15:04")),
		},
		"Status": gnt.DatabasePageProperty{
			Select: &gnt.SelectOptions{Name: "summary"},
		},
		"Notes": gnt.DatabasePageProperty{
			RichText: richText(notes),
		},
		"Run": gnt.DatabasePageProperty{
			RichText: richText(summary.RunID),
		},
	}
}

// helper: build a valid Notion rich_text slice from a plain string.
func richText(s string) []gnt.RichText {
	if s == "" {
		return nil
	}
	return []gnt.RichText{
		{
			Text: &gnt.Text{
				Content: s,
			},
		},
	}
}

func buildRowProperties(platform, runID string, job domain.AppliedJob) gnt.DatabasePageProperties {
	props := gnt.DatabasePageProperties{}

	// Position — Title (required title property)
	if job.Title != "" {
		props["Position"] = gnt.DatabasePageProperty{
			Title: richText(job.Title),
		}
	}

	// Company — Text (rich_text)
	if job.Company != "" {
		props["Company"] = gnt.DatabasePageProperty{
			RichText: richText(job.Company),
		}
	}

	// Job Posting — URL
	if job.URL != "" {
		props["Job Posting"] = gnt.DatabasePageProperty{
			URL: &job.URL,
		}
	}

	// Platform — Select
	if platform != "" {
		props["Platform"] = gnt.DatabasePageProperty{
			Select: &gnt.SelectOptions{
				Name: platform,
			},
		}
	}

	// Status — Select
	if job.Status != "" {
		props["Status"] = gnt.DatabasePageProperty{
			Select: &gnt.SelectOptions{
				Name: job.Status,
			},
		}
	}

	// Relevance — Number
	if job.RelevanceScore > 0 {
		score := float64(job.RelevanceScore)
		props["Relevance"] = gnt.DatabasePageProperty{
			Number: &score,
		}
	}

	// Notes — Text (rich_text)
	notes := job.FailureReason
	if job.AIEnhanced {
		if notes != "" {
			notes += "; "
		}
		notes += "AI-tailored content"
	}
	if notes != "" {
		props["Notes"] = gnt.DatabasePageProperty{
			RichText: richText(notes),
		}
	}

	// Run — Text (rich_text)
	if runID != "" {
		props["Run"] = gnt.DatabasePageProperty{
			RichText: richText(runID),
		}
	}

	return props
}
