// Package mteam handles the platform variant that abandoned
// server-rendered tables: invite state ships as a serialized state
// blob embedded in the page, next to a JSON statistics API.
package mteam

import (
	"context"
	"encoding/json"
	"fmt"
	"invitarium/lib/sizeutil"
	"invitarium/lib/tracker"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/mteam")

func Match(siteUrl string) bool {
	return strings.Contains(strings.ToLower(siteUrl), "m-team")
}

var initialStateRegex = regexp.MustCompile(`(?s)window\.__INITIAL_STATE__\s*=\s*(\{.*?\});`)

type initialState struct {
	InviteQuota struct {
		Permanent int `json:"permanent"`
		Temporary int `json:"temporary"`
	} `json:"inviteQuota"`
	Invitees []struct {
		Uid      json.Number `json:"uid"`
		Username string      `json:"username"`
		Email    string      `json:"email"`
		Uploaded float64     `json:"uploaded"`
		Download float64     `json:"downloaded"`
		Ratio    float64     `json:"ratio"`
		Status   string      `json:"status"`
	} `json:"invitees"`
}

type Client struct {
	Profile tracker.SiteProfile
	Http    *resty.Client
}

func NewClient(profile tracker.SiteProfile, session *resty.Client) (*Client, error) {
	if profile.ApiKey == "" || profile.Authorization == "" {
		return nil, fmt.Errorf("api credentials are not configured for this site")
	}
	session.SetHeader("authorization", profile.Authorization)
	session.SetHeader("api-key", profile.ApiKey)
	return &Client{Profile: profile, Http: session}, nil
}

// ParseInvitePage fetches the site statistics endpoint and the
// invite page, then lifts quota and roster out of the embedded state
// blob.
func (c *Client) ParseInvitePage(ctx context.Context) tracker.ParseResult {
	ctx, span := tracer.Start(ctx, "client:ParseInvitePage")
	defer span.End()

	link, err := url.Parse(c.Profile.Url)
	if err != nil {
		return tracker.Failure(tracker.FailureSiteConfigIncomplete, fmt.Sprintf("站点URL无效: %s", err))
	}
	domain := link.Hostname()

	res, err := c.Http.R().
		SetContext(ctx).
		Get(fmt.Sprintf("https://%s/api/v1/site/statistic/%s", domain, domain))
	if err != nil || res.StatusCode() >= 400 {
		span.SetStatus(codes.Error, "statistic api request failed")
		return tracker.Failure(tracker.FailureNetworkError, fmt.Sprintf("访问站点API失败: %v", err))
	}

	pageRes, err := c.Http.R().
		SetContext(ctx).
		Get("/invite")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invite page request failed")
		return tracker.Failure(tracker.FailureNetworkError, fmt.Sprintf("访问邀请页面失败: %s", err))
	}

	return parseInvitePage(pageRes.String())
}

func parseInvitePage(body string) tracker.ParseResult {
	var result tracker.ParseResult

	groups := initialStateRegex.FindStringSubmatch(body)
	if groups == nil {
		return tracker.Failure(tracker.FailureBadPageStructure, "页面中没有找到状态数据")
	}

	var state initialState
	if err := json.Unmarshal([]byte(groups[1]), &state); err != nil {
		return tracker.Failure(tracker.FailureBadPageStructure, fmt.Sprintf("解析状态数据失败: %s", err))
	}

	result.InviteStatus.PermanentCount = state.InviteQuota.Permanent
	result.InviteStatus.TemporaryCount = state.InviteQuota.Temporary
	if state.InviteQuota.Permanent > 0 || state.InviteQuota.Temporary > 0 {
		result.InviteStatus.CanInvite = true
		result.InviteStatus.Reason = fmt.Sprintf(
			"可用邀请数: 永久=%d, 临时=%d",
			state.InviteQuota.Permanent, state.InviteQuota.Temporary,
		)
	} else {
		result.InviteStatus.Reason = "当前没有可用邀请名额"
	}

	for _, invitee := range state.Invitees {
		record := tracker.InviteeRecord{
			Username:        invitee.Username,
			Email:           invitee.Email,
			Uploaded:        sizeutil.FormatSize(invitee.Uploaded),
			UploadedBytes:   invitee.Uploaded,
			Downloaded:      sizeutil.FormatSize(invitee.Download),
			DownloadedBytes: invitee.Download,
			Ratio:           strconv.FormatFloat(invitee.Ratio, 'f', 2, 64),
			RatioValue:      invitee.Ratio,
			Status:          invitee.Status,
			ProfileUrl:      fmt.Sprintf("/profile/detail/%s", invitee.Uid),
		}
		if record.Username == "" {
			continue
		}
		record.RatioHealth, record.RatioLabel = classifyRatio(invitee.Ratio, invitee.Uploaded, invitee.Download)
		result.Invitees = append(result.Invitees, record)
	}

	return result
}

func classifyRatio(ratio, uploaded, downloaded float64) (tracker.RatioHealth, string) {
	switch {
	case uploaded == 0 && downloaded == 0:
		return tracker.RatioNeutral, "无数据"
	case ratio >= sizeutil.Sentinel:
		return tracker.RatioExcellent, "无限"
	case ratio >= 1:
		return tracker.RatioGood, "良好"
	case ratio >= 0.5:
		return tracker.RatioWarning, "较低"
	default:
		return tracker.RatioDanger, "危险"
	}
}
