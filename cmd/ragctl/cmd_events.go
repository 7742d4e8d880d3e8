package main

import (
	"context"
	"fmt"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"research-agent-be/pkg/events"
	pktNats "research-agent-be/pkg/nats"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	eventsThread  string
	eventsDurable string
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Tail pipeline events relayed to NATS",
	Args:  cobra.NoArgs,
	RunE:  runEvents,
}

func init() {
	eventsCmd.Flags().StringVar(&eventsThread, "thread", "", "only show events of this thread")
	eventsCmd.Flags().StringVar(&eventsDurable, "durable", "", "durable consumer name, resumes where it stopped")
}

func runEvents(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sub, err := pktNats.NewSubscriber(cfg.Events.NatsURL, cliLogger(cfg))
	if err != nil {
		return err
	}
	defer sub.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stopConsuming, err := sub.Subscribe(ctx, pktNats.SubjectPrefix+".>", eventsDurable, printEvent)
	if err != nil {
		return err
	}
	defer stopConsuming()

	color.HiBlack("Listening on %s.> (Ctrl+C to stop)", pktNats.SubjectPrefix)
	<-ctx.Done()
	return nil
}

func printEvent(_ context.Context, e events.Event) error {
	data := e.Payload()
	if eventsThread != "" && data["thread_id"] != eventsThread {
		return nil
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		if k != "id" && k != "thread_id" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, data[k]))
	}

	label := color.New(color.FgCyan).SprintFunc()
	fmt.Printf("%s %s %v %s\n", e.Timestamp().Format("15:04:05.000"), label(e.EventType()), data["thread_id"], strings.Join(parts, " "))
	return nil
}
