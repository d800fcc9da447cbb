package verify

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var reURL = regexp.MustCompile(`https?://[^\s<>"']+`)

// Hosted application-flow products that send out-of-band verification
// emails. A link on one of these hosts plus a verify/confirm token is the
// strongest signal we get.
var atsDomains = []string{
	"greenhouse.io",
	"lever.co",
	"myworkday.com",
	"smartrecruiters.com",
	"ashbyhq.com",
}

var verifyTokens = []string{"verify", "confirm", "verification", "email-confirmation"}

// ParseBody splits an RFC822 message into its plain-text and HTML parts.
// A message that cannot be parsed at all degrades to raw-as-plaintext;
// it never errors.
func ParseBody(raw []byte) (plain, html string) {
	if len(raw) == 0 {
		return "", ""
	}
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return string(raw), ""
	}
	bodyRaw, _ := io.ReadAll(io.LimitReader(msg.Body, 6<<20))
	plain, html = extractMIMETextParts(msg.Header, bodyRaw)
	if plain == "" && html == "" {
		plain = string(bodyRaw)
	}
	return plain, html
}

func extractMIMETextParts(h mail.Header, body []byte) (plain, htmlPart string) {
	ct := h.Get("Content-Type")
	cte := strings.ToLower(strings.TrimSpace(h.Get("Content-Transfer-Encoding")))

	mediaType, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return string(decodeTransferEncoding(body, cte)), ""
	}
	mediaType = strings.ToLower(mediaType)

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return string(decodeTransferEncoding(body, cte)), ""
		}
		mr := multipart.NewReader(bytes.NewReader(body), boundary)

		var bestPlain, bestHTML string
		for {
			p, err := mr.NextPart()
			if err != nil {
				break
			}
			partCTE := strings.ToLower(strings.TrimSpace(p.Header.Get("Content-Transfer-Encoding")))
			pMedia, _, _ := mime.ParseMediaType(p.Header.Get("Content-Type"))
			pMedia = strings.ToLower(pMedia)

			b, _ := io.ReadAll(io.LimitReader(p, 6<<20))
			b = decodeTransferEncoding(b, partCTE)

			if strings.HasPrefix(pMedia, "multipart/") {
				pl, ht := extractMIMETextParts(mail.Header(p.Header), b)
				if len(pl) > len(bestPlain) {
					bestPlain = pl
				}
				if len(ht) > len(bestHTML) {
					bestHTML = ht
				}
				continue
			}

			switch {
			case strings.HasPrefix(pMedia, "text/plain"):
				if len(b) > len(bestPlain) {
					bestPlain = string(b)
				}
			case strings.HasPrefix(pMedia, "text/html"):
				if len(b) > len(bestHTML) {
					bestHTML = string(b)
				}
			}
		}
		return bestPlain, bestHTML
	}

	s := decodeTransferEncoding(body, cte)
	if strings.HasPrefix(mediaType, "text/html") {
		return "", string(s)
	}
	return string(s), ""
}

func decodeTransferEncoding(b []byte, cte string) []byte {
	switch cte {
	case "base64":
		dec := base64.NewDecoder(base64.StdEncoding, bytes.NewReader(b))
		out, _ := io.ReadAll(io.LimitReader(dec, 6<<20))
		return out
	case "quoted-printable":
		dec := quotedprintable.NewReader(bytes.NewReader(b))
		out, _ := io.ReadAll(io.LimitReader(dec, 6<<20))
		return out
	default:
		return b
	}
}

// ExtractLinks returns every URL in the message in order of appearance:
// anchor hrefs from the HTML part first (document order), then naked URLs
// from the text part. Order matters: the first qualifying link wins.
func ExtractLinks(plain, html string) []string {
	var out []string
	seen := map[string]bool{}
	add := func(u string) {
		u = strings.TrimRight(strings.TrimSpace(u), ".,;:!?)]\"'")
		if u == "" || seen[u] {
			return
		}
		seen[u] = true
		out = append(out, u)
	}

	if html != "" {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
			doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
				if href, ok := a.Attr("href"); ok {
					add(href)
				}
			})
		}
	}
	for _, u := range reURL.FindAllString(plain, -1) {
		add(u)
	}
	return out
}

// IsVerificationLink applies the conservative qualification rules: the
// link must be https with a real host, must carry a verify/confirm token
// in its path or query, and must either sit on a known ATS domain or
// carry a verification keyword. A wrong navigation can submit a
// half-finished application, so prefer no match over a loose one.
func IsVerificationLink(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "https" || u.Host == "" {
		return false
	}

	pathQuery := strings.ToLower(u.Path + "?" + u.RawQuery)
	token := false
	for _, t := range verifyTokens {
		if strings.Contains(pathQuery, t) {
			token = true
			break
		}
	}
	if !token {
		return false
	}

	host := strings.ToLower(u.Host)
	for _, d := range atsDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	// No ATS domain: accept only if the host itself advertises a
	// verification purpose (e.g. verify.example.com, email.example.com).
	return strings.Contains(host, "verify") || strings.Contains(host, "confirm") ||
		strings.Contains(host, "email")
}

// FindVerificationLink scans one message and returns the first qualifying
// link in body order, or "".
func FindVerificationLink(msg Message) string {
	plain, html := ParseBody(msg.Raw)
	for _, link := range ExtractLinks(plain, html) {
		if IsVerificationLink(link) {
			return link
		}
	}
	return ""
}

// MatchesHeuristics reports whether a message looks like an ATS
// verification email based on sender/subject needles.
func MatchesHeuristics(msg Message, senderAny, subjectAny []string) bool {
	if len(senderAny) == 0 && len(subjectAny) == 0 {
		return true
	}
	return containsAnyCI(msg.From, senderAny) || containsAnyCI(msg.Subject, subjectAny)
}

func containsAnyCI(s string, any []string) bool {
	ls := strings.ToLower(s)
	for _, a := range any {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if strings.Contains(ls, strings.ToLower(a)) {
			return true
		}
	}
	return false
}
