package invites

import (
	"context"
	"database/sql"
	"fmt"
	"invitarium/lib/telemetry"
	"invitarium/lib/tracker"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func serveTracker(t testing.TB) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/index.php":
			fmt.Fprint(w, "<html><body>ok</body></html>")
		case "/usercp.php":
			fmt.Fprint(w, `<html><body><a href="userdetails.php?id=7">profile</a></body></html>`)
		case "/invite.php":
			if r.URL.Query().Get("type") == "new" {
				fmt.Fprint(w, `<html><body><form action="takeinvite.php"></form></body></html>`)
				return
			}
			fmt.Fprint(w, `<html><body>
<span id="info_block">邀请 [发送]: <a href="invite.php?id=7">1(0)</a></span>
<table border="1">
<tr><td>用户名</td><td>邮箱</td><td>上传</td><td>下载</td><td>分享率</td></tr>
<tr><td>alice</td><td>a@example.com</td><td>10 GB</td><td>5 GB</td><td>2.0</td></tr>
</table>
</body></html>`)
		case "/mybonus.php":
			fmt.Fprint(w, "<html><body></body></html>")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func setup(t testing.TB, sites []tracker.SiteProfile) (Service, func()) {
	cleanup := telemetry.SetupForTesting(t, "test:services/invites")

	sqlite, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)

	service, err := NewService(context.Background(), sqlite, sites)
	require.NoError(t, err)

	return service, func() {
		sqlite.Close()
		cleanup()
	}
}

func TestRefreshAllIsolatesFailures(t *testing.T) {
	good1 := serveTracker(t)
	good2 := serveTracker(t)

	// a server that is already gone produces a network failure
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadUrl := dead.URL
	dead.Close()

	service, cleanup := setup(t, []tracker.SiteProfile{
		{Name: "siteA", Url: good1.URL, Cookie: "c=1"},
		{Name: "siteB", Url: deadUrl, Cookie: "c=1"},
		{Name: "siteC", Url: good2.URL, Cookie: "c=1"},
	})
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	stats := service.RefreshAll(ctx)
	require.Equal(t, 2, stats.Success)
	require.Equal(t, 1, stats.Failed)

	// the failure is cached like any other result
	cached, err := service.CachedAll(ctx)
	require.NoError(t, err)
	require.Len(t, cached, 3)

	failed, err := service.Cached(ctx, "siteB")
	require.NoError(t, err)
	require.Equal(t, tracker.FailureNetworkError, failed.Result.ErrorKind)
	require.False(t, failed.Result.InviteStatus.CanInvite)
}

func TestParseSiteUnknownSuggests(t *testing.T) {
	service, cleanup := setup(t, []tracker.SiteProfile{
		{Name: "hdhome", Url: "https://hdhome.org", Cookie: "c=1"},
	})
	defer cleanup()

	result := service.ParseSite(context.Background(), "hdome")
	require.Equal(t, tracker.FailureSiteNotSelected, result.ErrorKind)
	require.Contains(t, result.Error, "hdhome")
}

func TestParseSiteIncompleteConfig(t *testing.T) {
	service, cleanup := setup(t, []tracker.SiteProfile{
		{Name: "nocookie", Url: "https://example.org"},
	})
	defer cleanup()

	ctx := context.Background()
	result := service.ParseSite(ctx, "nocookie")
	require.Equal(t, tracker.FailureSiteConfigIncomplete, result.ErrorKind)

	cached, err := service.Cached(ctx, "nocookie")
	require.NoError(t, err)
	require.Equal(t, tracker.FailureSiteConfigIncomplete, cached.Result.ErrorKind)
}

func TestCachedRoundTrip(t *testing.T) {
	server := serveTracker(t)
	service, cleanup := setup(t, []tracker.SiteProfile{
		{Name: "site", Url: server.URL, Cookie: "c=1"},
	})
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	live := service.ParseSite(ctx, "site")
	require.Empty(t, live.Error)

	cached, err := service.Cached(ctx, "site")
	require.NoError(t, err)
	if diff := cmp.Diff(live, cached.Result); diff != "" {
		t.Fatalf("cached result drifted from live result:\n%s", diff)
	}
	require.False(t, cached.LastUpdate.IsZero())
}

func TestDispatchPriority(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://kp.m-team.cc", "mteam"},
		{"https://open.cd", "slotcheck"},
		{"https://pterclub.com", "slotcheck"},
		{"https://hdchina.org", "legacy"},
		{"https://totheglory.im", "legacy"},
		{"https://hdhome.org", "nexusphp"},
		{"https://entirely-unknown.example", "nexusphp"},
	}
	for _, c := range cases {
		require.Equal(t, c.want, Dispatch(c.url).Name(), "url: %s", c.url)
	}
}
