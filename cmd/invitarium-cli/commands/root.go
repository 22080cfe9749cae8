package commands

import (
	"context"
	"database/sql"
	"fmt"
	"invitarium/lib/configutil"
	"invitarium/lib/tracker"
	"invitarium/lib/util/serviceutil"
	"invitarium/services/invites"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "invitarium-cli",
	Short: "invitarium-cli collects invite quotas and invitee rosters from configured trackers.",
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type Config struct {
	Sites    []tracker.SiteProfile `json:"sites"`
	Database configutil.Database   `json:"database"`
}

// openService wires the pieces every subcommand needs: the site list
// from sites.json5 and the result cache database.
func openService(ctx context.Context) (invites.Service, *sql.DB) {
	cfg, err := configutil.ReadConfig[Config]("sites.json5")
	if err != nil {
		serviceutil.Fatal("failed to read sites.json5", err)
	}
	if cfg.Database.File == "" && cfg.Database.Url == "" {
		cfg.Database.File = "invitarium.db"
	}

	database, err := cfg.Database.OpenDB()
	if err != nil {
		serviceutil.Fatal("failed to open result cache", err)
	}

	service, err := invites.NewService(ctx, database, cfg.Sites)
	if err != nil {
		database.Close()
		serviceutil.Fatal("failed to initialize invite service", err)
	}
	return service, database
}
