package main

import (
	"htmlkit/cmd/htmlkit/commands"
	"htmlkit/lib/serviceutil"
)

func main() {
	ctx, stop := serviceutil.SignalContext()
	defer stop()
	commands.ExecuteContext(ctx)
}
