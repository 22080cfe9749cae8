package mteam

import (
	"invitarium/lib/tracker"
	"testing"

	"github.com/stretchr/testify/require"
)

const invitePage = `<html><body>
<script>
window.__INITIAL_STATE__ = {
  "inviteQuota": {"permanent": 1, "temporary": 2},
  "invitees": [
    {"uid": 1001, "username": "alice", "email": "a@example.com",
     "uploaded": 1073741824, "downloaded": 536870912, "ratio": 2.0, "status": "CONFIRMED"},
    {"uid": 1002, "username": "bob", "email": "b@example.com",
     "uploaded": 0, "downloaded": 0, "ratio": 0, "status": "PENDING"}
  ]
};
</script>
</body></html>`

func TestParseInvitePage(t *testing.T) {
	result := parseInvitePage(invitePage)
	require.Empty(t, result.Error)

	require.True(t, result.InviteStatus.CanInvite)
	require.Equal(t, 1, result.InviteStatus.PermanentCount)
	require.Equal(t, 2, result.InviteStatus.TemporaryCount)

	require.Len(t, result.Invitees, 2)

	alice := result.Invitees[0]
	require.Equal(t, "alice", alice.Username)
	require.Equal(t, "1.00 GB", alice.Uploaded)
	require.Equal(t, "512.00 MB", alice.Downloaded)
	require.Equal(t, "2.00", alice.Ratio)
	require.Equal(t, tracker.RatioGood, alice.RatioHealth)
	require.Equal(t, "/profile/detail/1001", alice.ProfileUrl)

	bob := result.Invitees[1]
	require.Equal(t, tracker.RatioNeutral, bob.RatioHealth)
	require.Equal(t, "无数据", bob.RatioLabel)
}

func TestParseInvitePageNoQuota(t *testing.T) {
	page := `<script>window.__INITIAL_STATE__ = {"inviteQuota": {"permanent": 0, "temporary": 0}, "invitees": []};</script>`
	result := parseInvitePage(page)
	require.False(t, result.InviteStatus.CanInvite)
	require.Equal(t, "当前没有可用邀请名额", result.InviteStatus.Reason)
}

func TestParseInvitePageMissingState(t *testing.T) {
	result := parseInvitePage("<html><body>nothing here</body></html>")
	require.Equal(t, tracker.FailureBadPageStructure, result.ErrorKind)
}

func TestNewClientRequiresApiCredentials(t *testing.T) {
	_, err := NewClient(tracker.SiteProfile{Url: "https://kp.m-team.cc"}, nil)
	require.Error(t, err)
}

func TestMatch(t *testing.T) {
	require.True(t, Match("https://kp.m-team.cc"))
	require.False(t, Match("https://hdhome.org"))
}
