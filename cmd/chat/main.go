package main

import (
	"bufio"
	"chat-sync/auth"
	"chat-sync/domain"
	"chat-sync/infrastructure/rest"
	"chat-sync/projection"
	"chat-sync/repositories"
	"chat-sync/runtime"
	"chat-sync/runtime/workers"
	"chat-sync/search"
	"chat-sync/services"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
)

const usage = `usage:
  chat send  -room <room> <text>   send one message and wait for its outcome
  chat watch -room <room>          print the room live, every stdin line is sent to it`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", color.Red.Render(err.Error()))
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing command\n%s", usage)
	}
	command := args[0]
	flags := flag.NewFlagSet(command, flag.ContinueOnError)
	room := flags.String("room", "general", "chat room")
	if err := flags.Parse(args[1:]); err != nil {
		return err
	}

	config, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	color.Enable = config.Colours
	log := logs.GetLoggerFromString(config.LogLevel)

	db, err := badger.Open(badger.DefaultOptions(config.DataDir).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() { _ = db.Close() }()
	store := repositories.NewMessageRepository(db, log)

	index, err := search.NewMessageIndex("", log)
	if err != nil {
		return err
	}
	defer func() { _ = index.Close() }()

	clientID := uuid.New()
	if config.ClientID != "" {
		if clientID, err = uuid.Parse(config.ClientID); err != nil {
			return fmt.Errorf("invalid CHAT_CLIENT_ID: %w", err)
		}
	}
	signer, err := auth.NewTokenSigner(config.AuthSecret, clientID, config.SenderID, config.Timeout*10)
	if err != nil {
		return err
	}
	endpoint, err := rest.NewClient(config.ServerURL, signer, &http.Client{}, log)
	if err != nil {
		return err
	}

	orchestrator := runtime.NewOrchestrator(log, workers.NewSupervisor(log), store, index, endpoint,
		runtime.NewLastKnownLocation(location(config)), config.SenderID, config.Timeout, 0)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	orchestrator.Start(ctx)
	defer orchestrator.Stop()

	switch command {
	case "send":
		return send(ctx, orchestrator, *room, flags.Args())
	case "watch":
		pull := workers.NewSyncJob(log, endpoint,
			services.NewIngestionService(log, store, nil).ForSource("pull"),
			repositories.NewCursorRepository(db, log), "remote")
		return watch(ctx, log, orchestrator, config, pull, *room)
	default:
		return fmt.Errorf("unknown command %q\n%s", command, usage)
	}
}

func send(ctx context.Context, orchestrator *runtime.Orchestrator, room string, words []string) error {
	if len(words) == 0 {
		return fmt.Errorf("nothing to send\n%s", usage)
	}
	outcomes := make(chan domain.DeliveryOutcome, 1)
	orchestrator.Executor().Post(func() {
		orchestrator.SetDeliveryListener(deliveryPrinter(outcomes))
	})
	orchestrator.Send(room, strings.Join(words, " "))

	select {
	case outcome := <-outcomes:
		if !outcome.OK() {
			return outcome.Reason
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// watch pulls the remote endpoint in the background and prints what the
// room query reports as new.
func watch(ctx context.Context, log *slog.Logger, orchestrator *runtime.Orchestrator, config Config, pull *workers.SyncJob, room string) error {
	scheduler, err := runtime.NewIntervalScheduler(log, config.PullInterval)
	if err != nil {
		return err
	}
	if err := orchestrator.ScheduleBackgroundOperations(ctx, scheduler, pull.Run); err != nil {
		return err
	}

	timeline := projection.NewTimeline(config.SenderID, func(added []domain.ChatMessage) {
		for _, m := range added {
			printMessage(m, config.SenderID)
		}
	})
	chat := services.NewChatService(orchestrator)
	handle := chat.WatchRoom(room, timeline)
	defer chat.LeaveRoom(handle)

	outcomes := make(chan domain.DeliveryOutcome, 16)
	orchestrator.Executor().Post(func() {
		orchestrator.SetDeliveryListener(deliveryPrinter(outcomes))
	})

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	fmt.Println(color.New(color.BgBlack, color.FgGreen).Render(fmt.Sprintf(" #%s ", room)))
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			chat.PostMessage(room, line)
		case outcome := <-outcomes:
			if !outcome.OK() {
				fmt.Println(color.Red.Render(fmt.Sprintf("not delivered: %v", outcome.Reason)))
			}
		}
	}
}

func printMessage(m domain.ChatMessage, me string) {
	sender := color.Cyan.Render(m.SenderID)
	if m.SenderID == me {
		sender = color.Green.Render(m.SenderID)
	}
	fmt.Printf("%s %s %s\n", color.Gray.Render(m.Timestamp.Local().Format("15:04:05")), sender, m.Text)
}

// deliveryPrinter reports outcomes on the terminal and forwards them.
type deliveryPrinter chan<- domain.DeliveryOutcome

func (p deliveryPrinter) OnDeliveryResult(outcome domain.DeliveryOutcome) {
	if outcome.OK() {
		fmt.Println(color.Green.Render(fmt.Sprintf("delivered %s", outcome.CorrelationID)))
	}
	p <- outcome
}

func location(config Config) *domain.Location {
	if config.Latitude == nil || config.Longitude == nil {
		return nil
	}
	return &domain.Location{Latitude: *config.Latitude, Longitude: *config.Longitude}
}
