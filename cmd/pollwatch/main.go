package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"classpoll/internal/events"
	"classpoll/pkg/logger"
	"classpoll/pkg/pollclient"

	"go.uber.org/zap"
)

const usage = `
Classpoll - live poll watcher

Usage:
  pollwatch [flags]

Joins the session over the WebSocket and prints the current poll every
time it changes. The REST API is polled as a fallback.

Flags:
`

func main() {
	serverURL := flag.String("server", "http://localhost:5000", "Base URL of the poll server")
	name := flag.String("name", "", "Join as this student; empty watches without joining")
	interval := flag.Duration("interval", 4*time.Second, "REST fallback polling interval")
	flag.Usage = func() {
		fmt.Print(usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	appLogger := logger.New(logger.DevelopmentMode)
	defer appLogger.Sync()
	log := appLogger.Logger.With(zap.String("component", "pollwatch"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := pollclient.New(*serverURL, nil)
	reconciler := pollclient.NewReconciler(func(s pollclient.Snapshot) {
		fmt.Println(render(s))
	})

	stream, err := client.Dial(ctx)
	if err != nil {
		log.Fatal("connect failed", zap.Error(err))
	}
	defer stream.Close()

	if *name != "" {
		if err := stream.Send(events.CommandStudentJoin, events.StudentJoinRequest{StudentName: *name}); err != nil {
			log.Fatal("join failed", zap.Error(err))
		}
	}
	if err := stream.Send(events.CommandGetActivePoll, nil); err != nil {
		log.Fatal("request active poll failed", zap.Error(err))
	}

	go watchStream(ctx, stream, reconciler, log, stop)
	pollREST(ctx, client, reconciler, *interval, log)
}

// watchStream feeds push events into the reconciler until the stream closes.
func watchStream(ctx context.Context, stream *pollclient.Stream, r *pollclient.Reconciler, log *zap.Logger, stop context.CancelFunc) {
	defer stop()
	for {
		env, err := stream.Next()
		if err != nil {
			if ctx.Err() == nil {
				log.Warn("stream closed", zap.Error(err))
			}
			return
		}

		switch env.Event {
		case events.EventRemovedFromSession, events.EventPollError, events.EventVoteError:
			var msg events.MessagePayload
			if env.Decode(&msg) == nil {
				fmt.Printf("[%s] %s\n", env.Event, msg.Message)
			}
		case events.EventJoinConfirmed:
			var joined events.JoinConfirmedPayload
			if env.Decode(&joined) == nil {
				fmt.Printf("joined as %s\n", joined.StudentName)
			}
		default:
			if _, err := r.ApplyEvent(env); err != nil {
				log.Warn("bad event payload", zap.String("event", env.Event), zap.Error(err))
			}
		}
	}
}

func pollREST(ctx context.Context, client *pollclient.Client, r *pollclient.Reconciler, interval time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		reqCtx, cancel := context.WithTimeout(ctx, interval)
		snap, ok, err := client.ActivePoll(reqCtx)
		cancel()
		switch {
		case err != nil:
			log.Warn("fetch active poll failed", zap.Error(err))
		case ok:
			r.ApplySnapshot(snap)
		default:
			r.ApplyNoActive()
		}
	}
}

func render(s pollclient.Snapshot) string {
	var b strings.Builder
	state := fmt.Sprintf("%ds left", s.TimeRemaining)
	if s.Ended() {
		state = "ended"
	}
	fmt.Fprintf(&b, "%s  (%s, %d responses)\n", s.Question, state, s.TotalResponses)
	for i, res := range s.Results {
		pct := 0
		if s.TotalResponses > 0 {
			pct = int(res.Votes * 100 / s.TotalResponses)
		}
		fmt.Fprintf(&b, "  %d. %-20s %3d%% (%d)\n", i+1, res.Text, pct, res.Votes)
	}
	return b.String()
}
