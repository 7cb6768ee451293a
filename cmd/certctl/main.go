package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "certctl:", err)
		os.Exit(1)
	}
}
