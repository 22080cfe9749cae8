package nexusphp

import (
	"bytes"
	"context"
	"fmt"
	"invitarium/lib/htmlutil"
	"invitarium/lib/restyutil"
	"invitarium/lib/telemetry"
	"invitarium/lib/tracker"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/nexusphp")

var (
	AuthInvalid        = fmt.Errorf("cookie rejected by the site, update the site credentials")
	UserIdUnresolvable = fmt.Errorf("could not resolve the account user id")
)

type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client
	UserId  string
}

// NewSession builds the authenticated resty session all pipelines
// share: cookie auth, the profile's user agent, and a cloudflare
// bypass transport. Redirects are confined to the site's own host.
func NewSession(profile tracker.SiteProfile) (*resty.Client, error) {
	baseUrl, err := url.Parse(profile.Url)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(profile.Url)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", profile.UserAgent)
	client.SetHeader("cookie", profile.Cookie)
	client.SetHeader("referer", profile.Url)
	client.SetHeader("accept-language", "zh-CN,zh;q=0.9,en;q=0.8")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(time.Second * 30)

	telemetry.InstrumentResty(client, "scrapers/nexusphp/http")
	restyutil.DumpResponses(client, restyDumpOutput)

	return client, nil
}

type ClientOptions struct {
	Profile tracker.SiteProfile
	Http    *resty.Client
}

// NewClient probes the session cookie against the site index and
// resolves the account's numeric user id, which every invite page
// URL is keyed on.
func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	ctx, span := tracer.Start(ctx, "NewClient")
	defer span.End()

	baseUrl, err := url.Parse(opts.Profile.Url)
	if err != nil {
		return nil, err
	}

	c := &Client{
		BaseUrl: baseUrl,
		Http:    opts.Http,
	}

	res, err := c.Http.R().
		SetContext(ctx).
		Get("/index.php")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cookie probe failed")
		return nil, err
	}
	if res.StatusCode() == 403 {
		span.SetStatus(codes.Error, "cookie probe forbidden")
		return nil, AuthInvalid
	}

	userId, err := c.resolveUserId(ctx)
	if err != nil {
		return nil, err
	}
	c.UserId = userId

	return c, nil
}

var userIdRegex = regexp.MustCompile(`id=(\d+)`)

// resolveUserId reads the control-panel page and pulls the id out of
// the profile link, falling back to the invite link.
func (c *Client) resolveUserId(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "client:resolveUserId")
	defer span.End()

	doc, err := c.fetchDocument(ctx, "/usercp.php")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch usercp")
		return "", err
	}

	for _, selector := range []string{
		`a[href*="userdetails.php"]`,
		`a[href*="invite.php"]`,
	} {
		for _, anchor := range htmlutil.GetAnchors(ctx, doc.Find(selector)) {
			groups := userIdRegex.FindStringSubmatch(anchor.Href)
			if len(groups) == 2 {
				return groups[1], nil
			}
		}
	}

	span.SetStatus(codes.Error, "no user id bearing link found")
	return "", UserIdUnresolvable
}

func (c *Client) fetchDocument(ctx context.Context, path string) (*goquery.Document, error) {
	res, err := c.Http.R().
		SetContext(ctx).
		Get(path)
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
}
