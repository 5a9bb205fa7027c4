package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/wolfman30/gemini-bridge/internal/app/bootstrap"
	"github.com/wolfman30/gemini-bridge/internal/bridge"
	appconfig "github.com/wolfman30/gemini-bridge/internal/config"
	"github.com/wolfman30/gemini-bridge/pkg/logging"
)

const resetCommand = "#reset"

type replier interface {
	Reply(ctx context.Context, query string, bctx bridge.Context) bridge.Reply
}

type clearer interface {
	Clear(ctx context.Context, id string) error
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found, using environment variables")
	}

	cfg := appconfig.Load()
	logger := logging.NewWithOptions(logging.Options{Level: "error", Format: "text", Output: os.Stderr})
	if cfg.LogLevel == "debug" {
		logger = logging.NewWithOptions(logging.Options{Level: "debug", Format: "text", Output: os.Stderr})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := bootstrap.BuildSessionStore(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "session store: %v\n", err)
		os.Exit(1)
	}
	defer backend.Close()

	sessions := bootstrap.BuildSessionManager(backend.Store, cfg, logger)
	bot, err := bootstrap.BuildBot(ctx, cfg, sessions, nil, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gemini: %v\n", err)
		os.Exit(1)
	}

	sessionID := "cli-" + uuid.NewString()
	fmt.Printf("Chatting with %s (session %s). Type %s to start over, Ctrl-D to quit.\n", cfg.Model, sessionID, resetCommand)
	if err := chat(ctx, os.Stdin, os.Stdout, bot, sessions, sessionID); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "chat: %v\n", err)
		os.Exit(1)
	}
}

// chat reads one query per line and prints the bot's reply until in is
// exhausted or ctx is cancelled.
func chat(ctx context.Context, in io.Reader, out io.Writer, bot replier, sessions clearer, sessionID string) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case resetCommand:
			if err := sessions.Clear(ctx, sessionID); err != nil {
				fmt.Fprintf(out, "[reset failed: %v]\n", err)
				continue
			}
			fmt.Fprintln(out, "[conversation cleared]")
			continue
		}

		reply := bot.Reply(ctx, line, bridge.NewTextContext(sessionID))
		switch {
		case reply.Empty():
			fmt.Fprintln(out, "[no reply]")
		case reply.Type == bridge.ReplyError:
			fmt.Fprintf(out, "[error] %s\n", reply.Content)
		default:
			fmt.Fprintln(out, reply.Content)
		}
	}
}
