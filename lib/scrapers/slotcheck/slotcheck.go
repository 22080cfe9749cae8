// Package slotcheck covers platforms that gate invites on a
// per-account slot quota. The listing parses like any other
// NexusPHP site, but the new-invite page must be read for an
// explicit "no slots left" notice that outranks the submission form.
package slotcheck

import (
	"context"
	"invitarium/lib/scrapers/nexusphp"
	"invitarium/lib/tracker"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("scrapers/slotcheck")

var platforms = []string{"open.cd", "moecat", "pterclub"}

func Match(siteUrl string) bool {
	lowered := strings.ToLower(siteUrl)
	for _, platform := range platforms {
		if strings.Contains(lowered, platform) {
			return true
		}
	}
	return false
}

var noSlotRegex = regexp.MustCompile(`当前账户上限数已到|帐户上限|没有可用的邀请名额|has reached`)

type Client struct {
	*nexusphp.Client
}

func NewClient(ctx context.Context, opts nexusphp.ClientOptions) (*Client, error) {
	inner, err := nexusphp.NewClient(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Client{Client: inner}, nil
}

func (c *Client) ParseInvitePage(ctx context.Context) tracker.ParseResult {
	return c.Client.ParseInvitePageUsing(ctx, probe)
}

// probe reads the new-invite page slot-first: a limit notice denies
// even when the form is still rendered, and a form only counts with
// a live submit control.
func probe(ctx context.Context, doc *goquery.Document, status *tracker.InviteStatus, restricted bool) {
	_, span := tracer.Start(ctx, "probe")
	defer span.End()

	if noSlotRegex.MatchString(doc.Text()) {
		status.CanInvite = false
		status.Reason = "当前账户上限数已到，没有可用坑位"
		span.SetAttributes(attribute.String("restriction", status.Reason))
		return
	}

	form := doc.Find(`form[action*="takeinvite.php"]`)
	if form.Length() == 0 {
		if phrase := nexusphp.RestrictionText(doc); phrase != "" {
			status.CanInvite = false
			status.Reason = phrase
			span.SetAttributes(attribute.String("restriction", phrase))
		}
		return
	}

	if form.Find(`input[type="submit"]`).Length() > 0 && !restricted {
		status.CanInvite = true
		if status.Reason == "" {
			status.Reason = "可以发送邀请，有可用坑位"
		}
	}
}
