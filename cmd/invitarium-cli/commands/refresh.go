package commands

import (
	"invitarium/lib/restyutil"
	"invitarium/lib/scrapers/nexusphp"
	"invitarium/lib/telemetry"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
)

var dumpDir *string

func init() {
	dumpDir = refreshCmd.Flags().String("dump", "", "Directory to dump raw HTTP exchanges to for debugging.")
	rootCmd.AddCommand(refreshCmd)
}

var refreshCmd = &cobra.Command{
	Use:   "refresh [site...]",
	Short: "Parses invite pages for all configured sites (or the named ones) and caches the results.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		telemetry.InstrumentPerfStats(ctx)

		if *dumpDir != "" {
			nexusphp.SetRestyDumpOutput(restyutil.NewFilesystemOutput(*dumpDir))
		}

		service, database := openService(ctx)
		defer database.Close()

		t1 := time.Now()
		if len(args) == 0 {
			stats := service.RefreshAll(ctx)
			slog.Info("refresh finished",
				"success", stats.Success,
				"failed", stats.Failed,
				"seconds", time.Since(t1).Seconds(),
			)
			return
		}

		success := 0
		failed := 0
		for _, name := range args {
			result := service.ParseSite(ctx, name)
			if result.Error != "" {
				slog.Warn("site refresh failed", "site", name, "err", result.Error)
				failed++
				continue
			}
			success++
		}
		slog.Info("refresh finished",
			"success", success,
			"failed", failed,
			"seconds", time.Since(t1).Seconds(),
		)
	},
}
