package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/tenantadmin/internal/admin/cli"
	"github.com/dmitrijs2005/tenantadmin/internal/admin/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	args := os.Args[1:]
	cfg, err := config.LoadConfig(args)
	if err != nil {
		log.Printf("%v", err)
		stop()
		os.Exit(cli.ExitError)
	}

	app, err := cli.NewApp(ctx, cfg)
	if err != nil {
		log.Printf("%v", err)
		stop()
		os.Exit(cli.ExitError)
	}

	code := app.Run(ctx, args)
	if err := app.Close(); err != nil {
		log.Printf("close: %v", err)
	}
	stop()
	os.Exit(code)
}
