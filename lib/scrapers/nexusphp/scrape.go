package nexusphp

import (
	"context"
	"fmt"
	"invitarium/lib/htmlutil"
	"invitarium/lib/tracker"
	"log/slog"
	"regexp"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	// sites paginate the roster at 50 rows; a shorter page is the
	// last one
	rosterPageSize = 50
	// guards against a site that keeps yielding full pages forever
	maxRosterPages = 100
)

var sorryRegex = regexp.MustCompile(`对不起|sorry`)

// ProbeFunc inspects the new-invite submission page and settles the
// final permission verdict. Variant packages supply their own when a
// platform words its slot limits differently.
type ProbeFunc func(ctx context.Context, doc *goquery.Document, status *tracker.InviteStatus, restricted bool)

// ParseInvitePage runs the whole default pipeline for one site:
// invite listing (quota + first roster page), pagination, bonus-shop
// wallet, and the new-invite probe. It always returns a structured
// result; failures short-circuit into a result carrying the reason.
func (c *Client) ParseInvitePage(ctx context.Context) tracker.ParseResult {
	return c.ParseInvitePageUsing(ctx, DefaultProbe)
}

// ParseInvitePageUsing is ParseInvitePage with the probe swapped out.
func (c *Client) ParseInvitePageUsing(ctx context.Context, probe ProbeFunc) tracker.ParseResult {
	ctx, span := tracer.Start(ctx, "client:ParseInvitePage")
	defer span.End()

	doc, err := c.fetchDocument(ctx, fmt.Sprintf("/invite.php?id=%s", c.UserId))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch invite page")
		return tracker.Failure(tracker.FailureNetworkError, fmt.Sprintf("访问邀请页面失败: %s", err))
	}

	if !hasAnyTable(doc) {
		span.SetStatus(codes.Error, "page carries no tables")
		return tracker.Failure(tracker.FailureBadPageStructure, "页面解析错误，可能未登录或者站点结构特殊")
	}

	status, restricted := classifyQuota(ctx, doc)
	result := tracker.ParseResult{
		InviteStatus: status,
		Invitees:     parseRoster(ctx, doc, c.BaseUrl),
	}

	c.walkRosterPages(ctx, &result)

	c.mergeWallet(ctx, &result.InviteStatus)

	c.probeNewInvite(ctx, &result.InviteStatus, restricted, probe)

	span.SetAttributes(
		attribute.Bool("can_invite", result.InviteStatus.CanInvite),
		attribute.Int("invitees", len(result.Invitees)),
	)
	return result
}

// walkRosterPages aggregates the paginated roster. The listing shows
// 50 members per page: a short first page means there is nothing to
// walk, and any later page that comes back short (or empty) is the
// last. The page index is explicit and starts at 1 because the
// unindexed listing already served page zero.
func (c *Client) walkRosterPages(ctx context.Context, result *tracker.ParseResult) {
	ctx, span := tracer.Start(ctx, "client:walkRosterPages")
	defer span.End()

	if len(result.Invitees) < rosterPageSize {
		return
	}

	for page := 1; page < maxRosterPages; page++ {
		doc, err := c.fetchDocument(ctx, fmt.Sprintf(
			"/invite.php?id=%s&menu=invitee&page=%d", c.UserId, page,
		))
		if err != nil {
			slog.WarnContext(ctx, "failed to fetch roster page", "page", page, "err", err)
			break
		}

		rows := parseRoster(ctx, doc, c.BaseUrl)
		if len(rows) == 0 {
			break
		}
		result.Invitees = append(result.Invitees, rows...)
		if len(rows) < rosterPageSize {
			break
		}
	}

	span.SetAttributes(attribute.Int("total_invitees", len(result.Invitees)))
}

// mergeWallet is best-effort: many sites hide or rename the bonus
// shop and a failed fetch must not degrade the rest of the result.
func (c *Client) mergeWallet(ctx context.Context, status *tracker.InviteStatus) {
	doc, err := c.fetchDocument(ctx, "/mybonus.php")
	if err != nil {
		slog.WarnContext(ctx, "failed to fetch bonus shop", "err", err)
		return
	}
	applyWallet(status, parseWallet(ctx, doc))
}

// probeNewInvite fetches the new-invite submission page and hands it
// to the probe. A failed fetch keeps the listing-derived verdict.
func (c *Client) probeNewInvite(ctx context.Context, status *tracker.InviteStatus, restricted bool, probe ProbeFunc) {
	ctx, span := tracer.Start(ctx, "client:probeNewInvite")
	defer span.End()

	doc, err := c.fetchDocument(ctx, fmt.Sprintf("/invite.php?id=%s&type=new", c.UserId))
	if err != nil {
		slog.WarnContext(ctx, "failed to fetch new-invite page, keeping listing-derived permission", "err", err)
		return
	}

	probe(ctx, doc, status, restricted)
}

// DefaultProbe confirms permission against the new-invite submission
// page. A takeinvite form there is the strongest positive signal, but
// an explicit restriction phrase found earlier still wins: the probe
// only ever upgrades an unrestricted account.
func DefaultProbe(ctx context.Context, doc *goquery.Document, status *tracker.InviteStatus, restricted bool) {
	_, span := tracer.Start(ctx, "DefaultProbe")
	defer span.End()

	if doc.Find(takeinviteFormSelector).Length() > 0 {
		if !restricted {
			status.CanInvite = true
			if status.Reason == "" {
				status.Reason = "可以发送邀请"
			}
		}
		return
	}

	if phrase := RestrictionText(doc); phrase != "" {
		status.CanInvite = false
		status.Reason = phrase
		span.SetAttributes(attribute.String("restriction", phrase))
	}
}

// RestrictionText pulls the full denial message shown in place of
// the form: the text node matching the apology wording, widened to
// its enclosing block and, when present, the whole surrounding
// table.
func RestrictionText(doc *goquery.Document) string {
	root := doc.Selection.Nodes
	if len(root) == 0 {
		return ""
	}
	node := htmlutil.FindText(root[0], sorryRegex)
	if node == nil {
		return ""
	}

	block := htmlutil.ClosestAncestor(node, "td", "div", "p", "h2")
	if block == nil {
		return ""
	}
	if table := htmlutil.ClosestAncestor(block, "table"); table != nil {
		return htmlutil.CollapseSpace(htmlutil.GetText(table))
	}
	return htmlutil.CollapseSpace(htmlutil.GetText(block))
}
