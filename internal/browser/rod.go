package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// intent -> button/link texts tried in order. These are text affordances,
// not CSS selectors; the DOM search itself is delegated to rod.
var intentTexts = map[Intent][]string{
	IntentApply:  {"Easy Apply", "Apply", "Apply now", "Apply to"},
	IntentNext:   {"Next", "Continue", "Review"},
	IntentSubmit: {"Submit application", "Submit", "Send application"},
}

// RodPage is a thin rod-backed Page. One RodPage is owned by exactly one
// in-flight application attempt; it is never shared.
type RodPage struct {
	browser *rod.Browser
	lc      *launcher.Launcher
	page    *rod.Page
}

func NewRodPage(headless bool) (*RodPage, error) {
	lc := launcher.New().Headless(headless)
	controlURL, err := lc.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		lc.Cleanup()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = b.Close()
		lc.Cleanup()
		return nil, fmt.Errorf("open page: %w", err)
	}

	return &RodPage{browser: b, lc: lc, page: page}, nil
}

func (p *RodPage) Close() {
	if p.page != nil {
		_ = p.page.Close()
	}
	if p.browser != nil {
		_ = p.browser.Close()
	}
	if p.lc != nil {
		p.lc.Cleanup()
	}
}

func (p *RodPage) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	err := rod.Try(func() {
		p.page.Context(navCtx).MustNavigate(url).MustWaitLoad()
	})
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (p *RodPage) CurrentURL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (p *RodPage) Content(ctx context.Context) (string, error) {
	var html string
	err := rod.Try(func() {
		html = p.page.Context(ctx).MustHTML()
	})
	if err != nil {
		return "", fmt.Errorf("page content: %w", err)
	}
	return html, nil
}

func (p *RodPage) Find(ctx context.Context, intent Intent) (Element, bool) {
	texts, ok := intentTexts[intent]
	if !ok {
		return nil, false
	}
	for _, text := range texts {
		var el *rod.Element
		err := rod.Try(func() {
			el = p.page.Context(ctx).Timeout(2 * time.Second).
				MustElementR("button, a, input[type=submit]", "(?i)"+strings.TrimSpace(text))
		})
		if err == nil && el != nil {
			return el, true
		}
	}
	return nil, false
}

func (p *RodPage) Click(ctx context.Context, el Element) error {
	re, ok := el.(*rod.Element)
	if !ok {
		return fmt.Errorf("click: not a rod element")
	}
	err := rod.Try(func() {
		re.Context(ctx).MustClick()
	})
	if err != nil {
		return fmt.Errorf("click: %w", err)
	}
	return nil
}

func (p *RodPage) Fill(ctx context.Context, el Element, text string) error {
	re, ok := el.(*rod.Element)
	if !ok {
		return fmt.Errorf("fill: not a rod element")
	}
	err := rod.Try(func() {
		re.Context(ctx).MustSelectAllText().MustInput(text)
	})
	if err != nil {
		return fmt.Errorf("fill: %w", err)
	}
	return nil
}

func (p *RodPage) Fields(ctx context.Context) ([]Field, error) {
	var els rod.Elements
	err := rod.Try(func() {
		els = p.page.Context(ctx).MustElements(`input[type="text"], input:not([type]), input[type="email"], input[type="tel"], textarea`)
	})
	if err != nil {
		return nil, fmt.Errorf("fields: %w", err)
	}

	out := make([]Field, 0, len(els))
	for _, el := range els {
		ctxParts := make([]string, 0, 3)
		for _, attr := range []string{"placeholder", "name", "aria-label"} {
			if v, err := el.Attribute(attr); err == nil && v != nil {
				ctxParts = append(ctxParts, *v)
			}
		}
		if id, err := el.Attribute("id"); err == nil && id != nil && *id != "" {
			var label *rod.Element
			if rod.Try(func() {
				label = p.page.MustElement(`label[for="` + *id + `"]`)
			}) == nil && label != nil {
				if txt, err := label.Text(); err == nil {
					ctxParts = append(ctxParts, txt)
				}
			}
		}
		out = append(out, Field{
			El:      el,
			Context: strings.ToLower(strings.Join(ctxParts, " ")),
		})
	}
	return out, nil
}
