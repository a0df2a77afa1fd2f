package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"worldgate/internal/app"
	"worldgate/internal/world"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config file (yaml or json)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfgPath)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(world.ExitError)
	}

	if err := a.Start(ctx); err != nil {
		fmt.Println("fatal start:", err)
		os.Exit(world.ExitError)
	}

	w := a.World()

	select {
	case <-ctx.Done():
		// SIGTERM/SIGINT: halt on the next tick, no countdown.
		w.ShutdownAfter(0, world.ShutdownForce, world.ExitShutdown, "signal")
	case <-w.Halted():
		// Operator-initiated stop or restart completed.
	case <-a.Done():
		// Fatal error in a supervised component.
	}

	select {
	case <-w.Halted():
	case <-time.After(10 * time.Second):
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	_ = a.Stop(stopCtx)
	stopCancel()

	if err := a.Err(); err != nil {
		os.Exit(world.ExitError)
	}
	os.Exit(w.ExitCode())
}
