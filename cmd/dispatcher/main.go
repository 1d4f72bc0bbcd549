package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/vshulcz/devpoll/pkg/buildinfo"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	build := buildinfo.Info{Version: buildVersion, Date: buildDate, Commit: buildCommit}
	if err := run(ctx, os.Args[1:], os.Stdout, build); err != nil {
		log.Fatalf("dispatcher: %v", err)
	}
}
