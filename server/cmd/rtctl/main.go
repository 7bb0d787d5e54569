package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/taskhub/realtime/pkg/emit"
	"github.com/taskhub/realtime/pkg/rtclient"
	"github.com/taskhub/realtime/pkg/token"
	"github.com/taskhub/realtime/server/internal/config"
)

const usage = `rtctl talks to a realtime server.

Usage:
  rtctl token  --user <id> [--ttl 2m]
  rtctl emit   --scope workspace|user|users --event <name> [--user <id>] [--users a,b] [--payload <json>] [--url <base>]
  rtctl listen --user <id> [--url ws://localhost:4001/realtime]

Secrets are read from REALTIME_JWT_SECRET (token, listen) and
REALTIME_EMIT_SECRET (emit).
`

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return errors.New("missing command")
	}
	switch args[0] {
	case "token":
		return runToken(args[1:], out)
	case "emit":
		return runEmit(ctx, args[1:], out)
	case "listen":
		return runListen(ctx, args[1:], out)
	case "help", "-h", "--help":
		fmt.Fprint(out, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func runToken(args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("token", pflag.ContinueOnError)
	user := fs.String("user", "", "user id placed in the sub claim")
	ttl := fs.Duration("ttl", token.DefaultTTL, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" {
		return errors.New("token: --user is required")
	}

	iss, err := newIssuer(*ttl)
	if err != nil {
		return err
	}
	raw, exp, err := iss.Mint(*user)
	if err != nil {
		return err
	}
	return json.NewEncoder(out).Encode(map[string]interface{}{
		"token":     raw,
		"expiresAt": exp.UTC().Format(time.RFC3339),
	})
}

func runEmit(ctx context.Context, args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("emit", pflag.ContinueOnError)
	scope := fs.String("scope", string(emit.ScopeWorkspace), "workspace | user | users")
	event := fs.String("event", "", "event name, e.g. task:created")
	user := fs.String("user", "", "target user id (scope user)")
	users := fs.String("users", "", "comma-separated user ids (scope users)")
	payload := fs.String("payload", "", "JSON payload")
	url := fs.String("url", "http://localhost:4001", "realtime server base URL")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req := emit.Request{
		Scope:   emit.Scope(*scope),
		Event:   *event,
		UserID:  *user,
		UserIDs: config.SplitList(*users),
	}
	if *payload != "" {
		if !json.Valid([]byte(*payload)) {
			return errors.New("emit: --payload is not valid JSON")
		}
		req.Payload = json.RawMessage(*payload)
	}

	secret := os.Getenv(config.DefaultEmitSecretEnv)
	if secret == "" {
		return fmt.Errorf("emit: %s is not set", config.DefaultEmitSecretEnv)
	}

	resp, err := emit.NewClient(strings.TrimRight(*url, "/"), secret).Emit(ctx, req)
	if err != nil {
		return err
	}
	return json.NewEncoder(out).Encode(resp)
}

func runListen(ctx context.Context, args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("listen", pflag.ContinueOnError)
	user := fs.String("user", "", "user id to connect as")
	url := fs.String("url", "ws://localhost:4001"+config.DefaultPath, "socket URL")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" {
		return errors.New("listen: --user is required")
	}

	iss, err := newIssuer(token.DefaultTTL)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	c := &rtclient.Client{
		URL: *url,
		Tokens: rtclient.TokenFunc(func(context.Context) (string, error) {
			raw, _, err := iss.Mint(*user)
			return raw, err
		}),
		OnReady: func(id string) {
			fmt.Fprintf(os.Stderr, "connected as %s\n", id)
		},
		OnEvent: func(ev rtclient.Event) {
			enc.Encode(ev) //nolint:errcheck
		},
	}
	c.Run(ctx)
	return nil
}

// --- helpers ---

func newIssuer(ttl time.Duration) (*token.Issuer, error) {
	secret := os.Getenv(config.DefaultJWTSecretEnv)
	if secret == "" {
		return nil, fmt.Errorf("%s is not set", config.DefaultJWTSecretEnv)
	}
	return token.NewIssuer(secret, token.WithTTL(ttl))
}
