package commands

import (
	"database/sql"
	"errors"
	"fmt"
	"invitarium/lib/util/serviceutil"
	"invitarium/services/invites"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(sitesCmd)
}

var showCmd = &cobra.Command{
	Use:   "show [site]",
	Short: "Displays cached invite status (and for a single site, its invitee roster).",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		service, database := openService(ctx)
		defer database.Close()

		if len(args) == 0 {
			cached, err := service.CachedAll(ctx)
			if err != nil {
				serviceutil.Fatal("failed to read cached results", err)
			}
			renderOverview(cached)
			return
		}

		cached, err := service.Cached(ctx, args[0])
		if errors.Is(err, sql.ErrNoRows) {
			message := fmt.Sprintf("no cached result for %s, run refresh first", args[0])
			if suggestion := service.Suggest(args[0]); suggestion != "" {
				message = fmt.Sprintf("no cached result for %s, did you mean %s?", args[0], suggestion)
			}
			fmt.Fprintln(os.Stderr, message)
			os.Exit(1)
		}
		if err != nil {
			serviceutil.Fatal("failed to read cached result", err)
		}
		renderOverview([]invites.CachedResult{cached})
		renderRoster(cached)
	},
}

func renderOverview(cached []invites.CachedResult) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Site", "Can Invite", "Permanent", "Temporary", "Bonus", "Reason", "Updated"})

	for _, c := range cached {
		status := c.Result.InviteStatus
		reason := status.Reason
		if c.Result.Error != "" {
			reason = c.Result.Error
		}
		t.AppendRow(table.Row{
			c.Site,
			status.CanInvite,
			status.PermanentCount,
			status.TemporaryCount,
			status.Bonus,
			reason,
			c.LastUpdate.Format(time.DateTime),
		})
	}

	t.SetStyle(table.StyleRounded)
	t.Render()
}

func renderRoster(cached invites.CachedResult) {
	if len(cached.Result.Invitees) == 0 {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Username", "Uploaded", "Downloaded", "Ratio", "Health", "Status", "Enabled"})

	for _, invitee := range cached.Result.Invitees {
		t.AppendRow(table.Row{
			invitee.Username,
			invitee.Uploaded,
			invitee.Downloaded,
			invitee.Ratio,
			invitee.RatioLabel,
			invitee.Status,
			invitee.Enabled,
		})
	}

	t.SetStyle(table.StyleRounded)
	t.Render()
}

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "Lists the configured sites and which handler claims each one.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		service, database := openService(ctx)
		defer database.Close()

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Site", "Url", "Handler"})

		for _, site := range service.Sites() {
			t.AppendRow(table.Row{site.Name, site.Url, invites.Dispatch(site.Url).Name()})
		}

		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
