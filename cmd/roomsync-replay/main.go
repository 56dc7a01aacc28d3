// Package main prints archived room transcripts.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	replaycmd "github.com/louisbranch/roomsync/internal/cmd/replay"
	"github.com/louisbranch/roomsync/internal/platform/config"
)

func main() {
	cfg, err := replaycmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf(config.ExitUsage, "parse flags: %v", err)
	}
	log.SetPrefix("[ROOMSYNC-REPLAY] ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := replaycmd.Run(ctx, cfg, os.Stdout); err != nil {
		log.Fatalf("replay: %v", err)
	}
}
