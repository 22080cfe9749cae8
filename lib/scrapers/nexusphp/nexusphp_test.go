package nexusphp

import (
	"context"
	"fmt"
	"invitarium/lib/telemetry"
	"invitarium/lib/tracker"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const listingPage = `<html><body>
<h1>邀请</h1>
<span id="info_block">邀请 [发送]: <a href="invite.php?id=42">2(3)</a></span>
<table border="1">
<tr><td>用户名</td><td>邮箱</td><td>上传</td><td>下载</td><td>分享率</td><td>启用</td></tr>
<tr><td><a href="userdetails.php?id=100">alice</a></td><td>a@example.com</td><td>100 GB</td><td>50 GB</td><td>2.0</td><td>yes</td></tr>
<tr class="rowbanned"><td><a href="userdetails.php?id=101">bob</a></td><td>b@example.com</td><td>10 GB</td><td>40 GB</td><td>0.25</td><td>no</td></tr>
<tr><td>carol</td><td>c@example.com</td><td>0</td><td>0</td><td>---</td><td>yes</td></tr>
</table>
</body></html>`

const bonusPage = `<html><body>
<p>你的魔力值 (当前12345.6)</p>
<table>
<tr><td>商品</td><td>描述</td><td>价格(魔力)</td></tr>
<tr><td>邀请名额</td><td>一个永久邀请</td><td>10000</td></tr>
<tr><td>临时邀请名额</td><td>一个临时邀请</td><td>5000</td></tr>
</table>
</body></html>`

const newInvitePage = `<html><body>
<form action="takeinvite.php" method="post">
<input type="text" name="email"/>
<input type="submit" value="邀请"/>
</form>
</body></html>`

func serveSite(t testing.TB, listing, bonus, newInvite string) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/index.php":
			fmt.Fprint(w, "<html><body>ok</body></html>")
		case "/usercp.php":
			fmt.Fprint(w, `<html><body><a href="userdetails.php?id=42">profile</a></body></html>`)
		case "/invite.php":
			switch {
			case r.URL.Query().Get("type") == "new":
				fmt.Fprint(w, newInvite)
			case r.URL.Query().Get("menu") == "invitee":
				fmt.Fprint(w, "<html><body><table></table></body></html>")
			default:
				fmt.Fprint(w, listing)
			}
		case "/mybonus.php":
			fmt.Fprint(w, bonus)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestClient(t testing.TB, server *httptest.Server) *Client {
	profile := tracker.SiteProfile{
		Name:      "testsite",
		Url:       server.URL,
		Cookie:    "uid=42; pass=secret",
		UserAgent: "Mozilla/5.0",
	}
	session, err := NewSession(profile)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	client, err := NewClient(ctx, ClientOptions{Profile: profile, Http: session})
	require.NoError(t, err)
	require.Equal(t, "42", client.UserId)
	return client
}

func TestParseInvitePage(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/nexusphp")
	defer cleanup()

	server := serveSite(t, listingPage, bonusPage, newInvitePage)
	client := newTestClient(t, server)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	result := client.ParseInvitePage(ctx)
	require.Empty(t, result.Error)

	require.True(t, result.InviteStatus.CanInvite)
	require.Equal(t, 2, result.InviteStatus.PermanentCount)
	require.Equal(t, 3, result.InviteStatus.TemporaryCount)
	require.Equal(t, 12345.6, result.InviteStatus.Bonus)
	require.Equal(t, 10000.0, result.InviteStatus.PermanentInvitePrice)
	require.Equal(t, 5000.0, result.InviteStatus.TemporaryInvitePrice)

	require.Len(t, result.Invitees, 3)

	alice := result.Invitees[0]
	require.Equal(t, "alice", alice.Username)
	require.Equal(t, server.URL+"/userdetails.php?id=100", alice.ProfileUrl)
	require.Equal(t, tracker.RatioGood, alice.RatioHealth)
	require.Equal(t, "良好", alice.RatioLabel)
	require.Equal(t, "Yes", alice.Enabled)
	require.Equal(t, "已确认", alice.Status)

	bob := result.Invitees[1]
	require.Equal(t, "No", bob.Enabled)
	require.Equal(t, "已禁用", bob.Status)
	require.Equal(t, tracker.RatioDanger, bob.RatioHealth)

	carol := result.Invitees[2]
	require.Equal(t, tracker.RatioNeutral, carol.RatioHealth)
	require.Equal(t, "无数据", carol.RatioLabel)
	require.Equal(t, "0", carol.Ratio)
}

func TestParseInvitePageIdempotent(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/nexusphp")
	defer cleanup()

	server := serveSite(t, listingPage, bonusPage, newInvitePage)
	client := newTestClient(t, server)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	first := client.ParseInvitePage(ctx)
	second := client.ParseInvitePage(ctx)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("results differ between runs:\n%s", diff)
	}
}

func TestRestrictionOutranksForm(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/nexusphp")
	defer cleanup()

	restricted := `<html><body>
<span id="info_block">邀请 [发送]: <a href="invite.php?id=42">0(0)</a></span>
<p>对不起，您没有邀请权限</p>
<table border="1">
<tr><td>用户名</td><td>邮箱</td></tr>
</table>
</body></html>`

	// even though the new-invite page still renders a form, the
	// explicit restriction phrase keeps the verdict negative
	server := serveSite(t, restricted, "<html><body></body></html>", newInvitePage)
	client := newTestClient(t, server)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	result := client.ParseInvitePage(ctx)
	require.False(t, result.InviteStatus.CanInvite)
	require.Contains(t, result.InviteStatus.Reason, "没有邀请权限")
}

func TestLoginPageShortCircuits(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/nexusphp")
	defer cleanup()

	server := serveSite(t, "<html><body>please log in</body></html>", "", "")
	client := newTestClient(t, server)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	result := client.ParseInvitePage(ctx)
	require.Equal(t, tracker.FailureBadPageStructure, result.ErrorKind)
	require.NotEmpty(t, result.Error)
}

func TestAuthInvalid(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/nexusphp")
	defer cleanup()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	profile := tracker.SiteProfile{Url: server.URL, Cookie: "stale"}
	session, err := NewSession(profile)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	_, err = NewClient(ctx, ClientOptions{Profile: profile, Http: session})
	require.ErrorIs(t, err, AuthInvalid)
}

func rosterPage(start, count int) string {
	var b strings.Builder
	b.WriteString(`<html><body><table border="1">`)
	b.WriteString("<tr><td>用户名</td><td>邮箱</td><td>上传</td><td>下载</td><td>分享率</td></tr>")
	for i := 0; i < count; i++ {
		fmt.Fprintf(&b,
			"<tr><td>user%d</td><td>u%d@example.com</td><td>10 GB</td><td>5 GB</td><td>2.0</td></tr>",
			start+i, start+i,
		)
	}
	b.WriteString("</table></body></html>")
	return b.String()
}

func TestRosterPagination(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/nexusphp")
	defer cleanup()

	var pageRequests []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/index.php":
			fmt.Fprint(w, "<html><body>ok</body></html>")
		case "/usercp.php":
			fmt.Fprint(w, `<html><body><a href="userdetails.php?id=42">profile</a></body></html>`)
		case "/invite.php":
			if r.URL.Query().Get("type") == "new" {
				fmt.Fprint(w, "<html><body></body></html>")
				return
			}
			page := r.URL.Query().Get("page")
			switch page {
			case "":
				fmt.Fprint(w, rosterPage(0, 50))
			case "1":
				pageRequests = append(pageRequests, page)
				fmt.Fprint(w, rosterPage(50, 50))
			case "2":
				pageRequests = append(pageRequests, page)
				fmt.Fprint(w, rosterPage(100, 0))
			default:
				pageRequests = append(pageRequests, page)
				t.Errorf("unexpected roster page fetch: %s", page)
			}
		case "/mybonus.php":
			fmt.Fprint(w, "<html><body></body></html>")
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	result := client.ParseInvitePage(ctx)
	require.Len(t, result.Invitees, 100)
	require.Equal(t, []string{"1", "2"}, pageRequests)
	require.Equal(t, "user0", result.Invitees[0].Username)
	require.Equal(t, "user99", result.Invitees[99].Username)
}

func TestShortFirstPageSkipsPagination(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/nexusphp")
	defer cleanup()

	paginated := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/index.php":
			fmt.Fprint(w, "<html><body>ok</body></html>")
		case "/usercp.php":
			fmt.Fprint(w, `<html><body><a href="userdetails.php?id=42">profile</a></body></html>`)
		case "/invite.php":
			if r.URL.Query().Get("menu") == "invitee" {
				paginated = true
			}
			fmt.Fprint(w, rosterPage(0, 3))
		case "/mybonus.php":
			fmt.Fprint(w, "<html><body></body></html>")
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	result := client.ParseInvitePage(ctx)
	require.Len(t, result.Invitees, 3)
	require.False(t, paginated)
}

func mustDoc(t testing.TB, markup string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	require.NoError(t, err)
	return doc
}

func TestSpecialTitleDedupe(t *testing.T) {
	doc := mustDoc(t, `<html><body>
<h1>后宫管理</h1>
<table border="1">
<tr><td>用户名</td><td>邮箱</td><td>上传</td></tr>
<tr><td>alice</td><td>a@example.com</td><td>10 GB</td></tr>
<tr><td>alice</td><td>a@example.com</td><td>10 GB</td></tr>
<tr><td>bob</td><td>b@example.com</td><td>20 GB</td></tr>
</table>
</body></html>`)

	invitees := parseRoster(context.Background(), doc, nil)
	require.Len(t, invitees, 2)
	require.Equal(t, "alice", invitees[0].Username)
	require.Equal(t, "bob", invitees[1].Username)
}

func TestWalletRejectsHourlyRate(t *testing.T) {
	doc := mustDoc(t, `<html><body>
<p>每小时能获取的魔力 (当前3.2)</p>
</body></html>`)

	wallet := parseWallet(context.Background(), doc)
	require.Equal(t, 0.0, wallet.Bonus)
}

func TestWalletPurchasabilityFlipsVerdict(t *testing.T) {
	status := tracker.InviteStatus{
		CanInvite: false,
		Reason:    "无法发送邀请: 没有邀请权限",
	}
	applyWallet(&status, Wallet{
		Bonus:                25000,
		PermanentInvitePrice: 10000,
		TemporaryInvitePrice: 5000,
	})

	require.True(t, status.CanInvite)
	require.Contains(t, status.Reason, "可购买")
	require.Equal(t, 25000.0, status.Bonus)
}

func TestWalletPurchasabilityKeepsQuotaVerdict(t *testing.T) {
	// an account with remaining quota that still cannot send (e.g.
	// class restriction) must not be flipped by wallet balance
	status := tracker.InviteStatus{
		CanInvite:      false,
		Reason:         "无法发送邀请: 低于要求的等级",
		PermanentCount: 2,
	}
	applyWallet(&status, Wallet{
		Bonus:                25000,
		PermanentInvitePrice: 10000,
	})

	require.False(t, status.CanInvite)
	require.Contains(t, status.Reason, "可购买")
}

func TestProbeReadsRestrictionText(t *testing.T) {
	doc := mustDoc(t, `<html><body>
<table><tr><td><h2>对不起</h2><p>只有魔神及以上等级才能发送邀请。</p></td></tr></table>
</body></html>`)

	status := tracker.InviteStatus{CanInvite: true, Reason: "存在邀请表单，可以发送邀请"}
	DefaultProbe(context.Background(), doc, &status, false)

	require.False(t, status.CanInvite)
	require.Contains(t, status.Reason, "对不起")
	require.Contains(t, status.Reason, "才能发送邀请")
}

func TestMatch(t *testing.T) {
	cases := []struct {
		url  string
		want bool
	}{
		{"https://hdhome.org", true},
		{"https://pt.keepfrds.com", true},
		{"https://example.com/nexusphp", true},
		{"https://tracker.example.com/index.php", true},
		{"https://kp.m-team.cc", false},
		{"https://totheglory.im", false},
		{"https://hdchina.org", false},
		{"https://u2.dmhy.org", false},
		{"https://example.org", false},
	}
	for _, c := range cases {
		require.Equal(t, c.want, Match(c.url), "url: %s", c.url)
	}
}
