// Package main starts the terminal room client and handles termination.
//
// The client joins one room over the chat websocket, prints the merged
// timeline and roster, and sends each input line as a message.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	roomsynccmd "github.com/louisbranch/roomsync/internal/cmd/roomsync"
	"github.com/louisbranch/roomsync/internal/platform/config"
)

func main() {
	cfg, err := roomsynccmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf(config.ExitUsage, "parse flags: %v", err)
	}
	log.SetPrefix("[ROOMSYNC] ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := roomsynccmd.Run(ctx, cfg); err != nil {
		log.Fatalf("room client: %v", err)
	}
}
