package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/tweetsweep/adapter/cli"
	cliAuth "github.com/felixgeelhaar/tweetsweep/adapter/cli/auth"
)

func main() {
	// The first SIGINT/SIGTERM cancels the run so progress is flushed.
	// A second one kills the process.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-ctx.Done()
		stop()
	}()

	cli.AddCommand(cliAuth.Cmd)

	code := cli.Execute(ctx)
	stop()
	os.Exit(code)
}
