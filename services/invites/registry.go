package invites

import (
	"context"
	"invitarium/lib/scrapers/mteam"
	"invitarium/lib/scrapers/nexusphp"
	"invitarium/lib/scrapers/slotcheck"
	"invitarium/lib/tracker"
	"strings"
)

// Handler parses one family of tracker installations. Match is a
// cheap URL check; Parse does the network work and never panics or
// errors out of band.
type Handler interface {
	Name() string
	Match(siteUrl string) bool
	Parse(ctx context.Context, profile tracker.SiteProfile) tracker.ParseResult
}

// handlers in claim priority: the api-driven variant and the
// slot-quota variant go first, the generic pipeline claims the rest.
// The legacy handler picks up platforms the generic matcher refuses
// but that still render the standard invite listing.
var handlers = []Handler{
	mteamHandler{},
	slotcheckHandler{},
	nexusphpHandler{},
	legacyHandler{},
}

// Dispatch picks the handler for a site URL. Nothing is ever left
// unclaimed: an unrecognized platform gets the generic pipeline,
// which degrades into a structured failure when the markup does not
// cooperate.
func Dispatch(siteUrl string) Handler {
	for _, handler := range handlers {
		if handler.Match(siteUrl) {
			return handler
		}
	}
	return nexusphpHandler{}
}

// ParseInvitePage runs one parse cycle for an arbitrary profile
// without touching the result cache.
func ParseInvitePage(ctx context.Context, profile tracker.SiteProfile) tracker.ParseResult {
	return Dispatch(profile.Url).Parse(ctx, profile)
}

func parseWithDefaultPipeline(ctx context.Context, profile tracker.SiteProfile) tracker.ParseResult {
	session, err := nexusphp.NewSession(profile)
	if err != nil {
		return tracker.Failure(tracker.FailureSiteConfigIncomplete, err.Error())
	}
	client, err := nexusphp.NewClient(ctx, nexusphp.ClientOptions{
		Profile: profile,
		Http:    session,
	})
	if err != nil {
		return failureFromClientError(err)
	}
	return client.ParseInvitePage(ctx)
}

func failureFromClientError(err error) tracker.ParseResult {
	switch err {
	case nexusphp.AuthInvalid:
		return tracker.Failure(tracker.FailureAuthInvalid, "Cookie已失效，请更新站点Cookie")
	case nexusphp.UserIdUnresolvable:
		return tracker.Failure(tracker.FailureUserIdUnresolvable, "无法获取用户ID，请检查站点Cookie")
	default:
		return tracker.Failure(tracker.FailureNetworkError, err.Error())
	}
}

type nexusphpHandler struct{}

func (nexusphpHandler) Name() string { return "nexusphp" }

func (nexusphpHandler) Match(siteUrl string) bool {
	return nexusphp.Match(siteUrl)
}

func (nexusphpHandler) Parse(ctx context.Context, profile tracker.SiteProfile) tracker.ParseResult {
	return parseWithDefaultPipeline(ctx, profile)
}

type mteamHandler struct{}

func (mteamHandler) Name() string { return "mteam" }

func (mteamHandler) Match(siteUrl string) bool {
	return mteam.Match(siteUrl)
}

func (mteamHandler) Parse(ctx context.Context, profile tracker.SiteProfile) tracker.ParseResult {
	session, err := nexusphp.NewSession(profile)
	if err != nil {
		return tracker.Failure(tracker.FailureSiteConfigIncomplete, err.Error())
	}
	client, err := mteam.NewClient(profile, session)
	if err != nil {
		return tracker.Failure(tracker.FailureSiteConfigIncomplete, err.Error())
	}
	return client.ParseInvitePage(ctx)
}

type slotcheckHandler struct{}

func (slotcheckHandler) Name() string { return "slotcheck" }

func (slotcheckHandler) Match(siteUrl string) bool {
	return slotcheck.Match(siteUrl)
}

func (slotcheckHandler) Parse(ctx context.Context, profile tracker.SiteProfile) tracker.ParseResult {
	session, err := nexusphp.NewSession(profile)
	if err != nil {
		return tracker.Failure(tracker.FailureSiteConfigIncomplete, err.Error())
	}
	client, err := slotcheck.NewClient(ctx, nexusphp.ClientOptions{
		Profile: profile,
		Http:    session,
	})
	if err != nil {
		return failureFromClientError(err)
	}
	return client.ParseInvitePage(ctx)
}

// platforms the generic matcher refuses because their markup has
// drifted, yet the standard pipeline still salvages a usable, if
// partial, result.
var legacyPlatforms = []string{"totheglory", "hdchina", "butterfly", "蝶粉", "dmhy"}

type legacyHandler struct{}

func (legacyHandler) Name() string { return "legacy" }

func (legacyHandler) Match(siteUrl string) bool {
	lowered := strings.ToLower(siteUrl)
	for _, platform := range legacyPlatforms {
		if strings.Contains(lowered, platform) {
			return true
		}
	}
	return false
}

func (legacyHandler) Parse(ctx context.Context, profile tracker.SiteProfile) tracker.ParseResult {
	return parseWithDefaultPipeline(ctx, profile)
}
