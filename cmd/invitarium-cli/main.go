package main

import (
	"context"
	"invitarium/cmd/invitarium-cli/commands"
	"invitarium/lib/telemetry"
)

func main() {
	telemetry.InitSlog(false)
	telemetry.SetupFromEnv(context.Background(), "invitarium-cli")
	commands.ExecuteContext(context.Background())
}
