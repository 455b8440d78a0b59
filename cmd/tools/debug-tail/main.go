package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/annel0/voxelcore/internal/eventbus"
)

const (
	defaultNATSURL = "nats://localhost:4222"
	timeFormat     = "15:04:05.000"
)

func main() {
	var (
		natsURL    = flag.String("nats", defaultNATSURL, "NATS server URL")
		stream     = flag.String("stream", "VOXEL_DEBUG", "JetStream stream name")
		command    = flag.String("cmd", "tail", "Command: tail, stats")
		categories = flag.String("categories", "", "Debug categories filter (comma-separated)")
		eventTypes = flag.String("types", "", "Event kinds filter (comma-separated)")
		limit      = flag.Int("limit", 100, "Maximum number of events for tail")
		follow     = flag.Bool("follow", false, "Follow new events (like tail -f)")
		window     = flag.Duration("for", 10*time.Second, "Collection window for stats")
	)
	flag.Parse()

	bus, err := eventbus.NewJetStreamBus(*natsURL, *stream, 0)
	if err != nil {
		log.Fatalf("❌ Failed to connect to NATS: %v", err)
	}
	defer bus.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	filter := eventbus.Filter{
		Sources: parseStringList(*categories),
		Types:   parseStringList(*eventTypes),
	}

	switch *command {
	case "tail":
		if err := tailEvents(ctx, bus, filter, *limit, *follow); err != nil {
			log.Fatalf("❌ Tail failed: %v", err)
		}

	case "stats":
		if err := showStats(ctx, bus, filter, *window); err != nil {
			log.Fatalf("❌ Stats failed: %v", err)
		}

	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		fmt.Println("Available commands: tail, stats")
		os.Exit(1)
	}
}

// subscribe перекладывает события шины в канал, чтобы читать их в одной горутине
func subscribe(ctx context.Context, bus eventbus.EventBus, filter eventbus.Filter) (<-chan *eventbus.Envelope, eventbus.Subscription, error) {
	ch := make(chan *eventbus.Envelope, 256)
	sub, err := bus.Subscribe(ctx, filter, func(ctx context.Context, ev *eventbus.Envelope) {
		select {
		case ch <- ev:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return nil, nil, err
	}
	return ch, sub, nil
}

// tailEvents выводит события в реальном времени
func tailEvents(ctx context.Context, bus eventbus.EventBus, filter eventbus.Filter, limit int, follow bool) error {
	fmt.Printf("🎬 Tailing debug events (limit: %d, follow: %v)\n", limit, follow)

	ch, sub, err := subscribe(ctx, bus, filter)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	eventCount := 0
	for {
		select {
		case <-ctx.Done():
			fmt.Printf("\n📊 Total events: %d\n", eventCount)
			return nil
		case ev := <-ch:
			printEvent(ev)
			eventCount++
			if !follow && eventCount >= limit {
				fmt.Printf("\n📊 Total events: %d\n", eventCount)
				return nil
			}
		}
	}
}

// showStats считает события по категориям и видам за окно window
func showStats(ctx context.Context, bus eventbus.EventBus, filter eventbus.Filter, window time.Duration) error {
	fmt.Printf("📊 Collecting debug events for %s\n", window)

	ch, sub, err := subscribe(ctx, bus, filter)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	counts := make(map[string]int)
	total := 0
	deadline := time.After(window)
collect:
	for {
		select {
		case <-ctx.Done():
			break collect
		case <-deadline:
			break collect
		case ev := <-ch:
			counts[ev.Source+"/"+ev.EventType]++
			total++
		}
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Printf("Total events: %d\n", total)
	fmt.Println("\nBy category/kind:")
	for _, k := range keys {
		fmt.Printf("  %s: %d events\n", k, counts[k])
	}
	return nil
}

// printEvent выводит событие в читаемом формате
func printEvent(ev *eventbus.Envelope) {
	fmt.Printf("[%s] %s/%s %s\n",
		ev.Timestamp.Local().Format(timeFormat),
		ev.Source,
		ev.EventType,
		ev.ID)

	fields, err := ev.Fields()
	if err != nil {
		fmt.Printf("  ⚠️ bad payload: %v\n", err)
		return
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %s: %v\n", k, fields[k])
	}
}

// parseStringList парсит строку с разделителями-запятыми
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
