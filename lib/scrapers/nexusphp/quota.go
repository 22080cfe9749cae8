package nexusphp

import (
	"context"
	"fmt"
	"invitarium/lib/htmlutil"
	"invitarium/lib/tracker"
	"regexp"
	"strconv"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
)

// Two-group count pattern: group 1 is the permanent quota, the
// optional parenthesized group 2 is the temporary quota, e.g.
// "邀请 [发送]: 1(2)" or "invite [send]: 3".
var inviteCountRegex = regexp.MustCompile(`(?i)(?:邀请|探视权|invite|邀請|查看权|查看權).*?(?:\[.*?\]|发送|查看).*?:?\s*(\d+)(?:\s*\((\d+)\))?`)

// Looser form applied to the text following the invite anchor when
// the anchor's surrounding text carries no match: ": 1(0)", "1".
var trailingCountRegex = regexp.MustCompile(`(?::)?\s*(\d+)(?:\s*\((\d+)\))?`)

// Restriction phrases in priority order, simplified and traditional
// script plus the English form some sites use. The first phrase
// found anywhere in the page text decides the reason.
var restrictionRegexes = compileAll([]string{
	`没有邀请权限`,
	`不能使用邀请`,
	`当前没有可用邀请名额`,
	`低于要求的等级`,
	`需要更高的用户等级`,
	`无法进行邀请注册`,
	`当前账户上限数已到`,
	`抱歉，目前没有开放注册`,
	`当前邀请注册人数已达上限`,
	`对不起`,
	`只有.*等级才能发送邀请`,
	`及以上.*才能发送邀请`,
	`\w+\s*or above can send invites`,
})

func compileAll(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

const takeinviteFormSelector = `form[action*="takeinvite.php"]`

// classifyQuota reads invite counts and send permission off the
// invite listing page. The returned flag reports whether an explicit
// restriction phrase was found; restriction evidence outranks a
// submission form everywhere downstream.
func classifyQuota(ctx context.Context, doc *goquery.Document) (tracker.InviteStatus, bool) {
	ctx, span := tracer.Start(ctx, "classifyQuota")
	defer span.End()

	var status tracker.InviteStatus

	permanent, temporary, found := extractInviteCounts(doc)
	if found {
		status.PermanentCount = permanent
		status.TemporaryCount = temporary
		if permanent > 0 || temporary > 0 {
			status.CanInvite = true
			status.Reason = fmt.Sprintf("可用邀请数: 永久=%d, 临时=%d", permanent, temporary)
		}
		span.SetAttributes(
			attribute.Int("permanent", permanent),
			attribute.Int("temporary", temporary),
		)
	}

	pageText := doc.Text()
	restricted := false
	for _, re := range restrictionRegexes {
		if phrase := re.FindString(pageText); phrase != "" {
			restricted = true
			status.CanInvite = false
			status.Reason = "无法发送邀请: " + phrase
			span.SetAttributes(attribute.String("restriction", phrase))
			break
		}
	}

	if doc.Find(takeinviteFormSelector).Length() > 0 && !restricted {
		status.CanInvite = true
		if status.Reason == "" {
			status.Reason = "存在邀请表单，可以发送邀请"
		}
	}

	if !status.CanInvite && status.Reason == "" {
		status.Reason = "无法确定邀请权限"
	}

	return status, restricted
}

// extractInviteCounts finds the quota numbers next to the invite
// anchor inside the account summary block. When the anchor's parent
// text does not match, the text trailing the anchor itself is tried
// with the looser pattern.
func extractInviteCounts(doc *goquery.Document) (permanent, temporary int, found bool) {
	block := locateQuotaBlock(doc)
	if block == nil {
		return 0, 0, false
	}
	anchor := block.Find(`a[href*="invite.php"]`).First()
	if anchor.Length() == 0 {
		return 0, 0, false
	}

	parentText := anchor.Parent().Text()
	if groups := inviteCountRegex.FindStringSubmatch(parentText); groups != nil {
		return parseCountGroups(groups)
	}

	trailing := htmlutil.FollowingText(anchor.Nodes[0])
	if trailing != "" {
		if groups := trailingCountRegex.FindStringSubmatch(trailing); groups != nil {
			return parseCountGroups(groups)
		}
	}
	return 0, 0, false
}

func parseCountGroups(groups []string) (int, int, bool) {
	permanent, err := strconv.Atoi(groups[1])
	if err != nil {
		return 0, 0, false
	}
	temporary := 0
	if groups[2] != "" {
		temporary, _ = strconv.Atoi(groups[2])
	}
	return permanent, temporary, true
}
