// Command arena is a headless client for the arena tournament platform: sign
// in, inspect your session, follow a match chat, and watch balance pushes from
// a terminal. It exercises the same coordination core a UI front-end would sit
// on top of.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-arena-client/api"
	"github.com/jrsteele09/go-arena-client/apierr"
	"github.com/jrsteele09/go-arena-client/chat"
	"github.com/jrsteele09/go-arena-client/internal/config"
	"github.com/jrsteele09/go-arena-client/internal/utils"
	"github.com/jrsteele09/go-arena-client/realtime"
	"github.com/jrsteele09/go-arena-client/session"
	"github.com/jrsteele09/go-arena-client/tokenstore"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("arena: %s\n", err)
	}
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	_ = godotenv.Load()
	cfg := config.New()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if cfg.GetEnv() == "DEV" {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	store, err := tokenstore.NewFileStore(filepath.Join(cfg.GetDataFolder(), "tokens.json"), logger)
	if err != nil {
		return err
	}
	defer store.Close()

	client := api.New(cfg.GetAPIBaseURL(), store, api.WithLogger(logger))

	var coord *session.Coordinator
	channel := realtime.NewChannel(cfg.GetRealtimeURL(), func(push api.BalancePush) {
		coord.HandleBalancePush(push)
		fmt.Printf("balance update: %.2f / %.2f UC\n", push.Balance, push.UCBalance)
	}, logger)

	coord = session.New(client, store, channel,
		session.WithLogger(logger),
		session.WithKeepAliveInterval(cfg.GetKeepAliveInterval()),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := coord.Start(ctx); err != nil {
		return err
	}
	defer coord.Stop()

	if len(os.Args) < 2 {
		usage()
		return nil
	}

	switch os.Args[1] {
	case "login":
		return cmdLogin(ctx, coord, os.Args[2:])
	case "register":
		return cmdRegister(ctx, coord, os.Args[2:])
	case "logout":
		coord.Logout(ctx)
		fmt.Println("logged out")
		return nil
	case "whoami":
		return cmdWhoami(coord)
	case "chats":
		return cmdChats(ctx, client)
	case "tail":
		return cmdTail(ctx, cfg, client, os.Args[2:])
	case "send":
		return cmdSend(ctx, client, os.Args[2:])
	case "watch":
		return cmdWatch(coord)
	default:
		usage()
		return fmt.Errorf("unknown command %q", os.Args[1])
	}
}

func usage() {
	fmt.Println(`usage: arena <command> [flags]

commands:
  login     -email -password      sign in
  register  -username -email -password
  logout                          sign out everywhere this file is shared
  whoami                          print the current identity
  chats                           list open match chats
  tail      -id                   follow a match chat until interrupted
  send      -id -message          post one message to a match chat
  watch                           stay signed in and print balance pushes`)
}

func cmdLogin(ctx context.Context, coord *session.Coordinator, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	_ = fs.Parse(args)

	if err := coord.Login(ctx, *email, *password); err != nil {
		if errors.Is(err, apierr.ErrBanned) {
			return fmt.Errorf("account banned: %s", apierr.ReasonOf(err))
		}
		if errors.Is(err, apierr.ErrInvalidCredentials) {
			return errors.New("invalid email or password")
		}
		return err
	}

	banner(coord)
	return nil
}

func cmdRegister(ctx context.Context, coord *session.Coordinator, args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	username := fs.String("username", "", "display name")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	_ = fs.Parse(args)

	if err := coord.Register(ctx, *username, *email, *password); err != nil {
		for field, msgs := range apierr.DetailsOf(err) {
			for _, m := range msgs {
				fmt.Printf("  %s: %s\n", field, m)
			}
		}
		return err
	}

	banner(coord)
	return nil
}

func cmdWhoami(coord *session.Coordinator) error {
	snap := coord.Snapshot()
	if snap.State != session.StateAuthenticated {
		return errors.New("not signed in")
	}
	u := snap.User
	fmt.Printf("%s (%s)\nrole: %s  verified: %v\nbalance: %.2f  uc: %.2f\n",
		u.Username, u.ID, u.Role, u.Verified, u.Balance, u.UCBalance)
	return nil
}

func cmdChats(ctx context.Context, client *api.Client) error {
	chats, err := client.MyTournamentChats(ctx)
	if err != nil {
		return err
	}
	for _, t := range chats {
		fmt.Printf("%-36s  %-10s  %s (%d unread)\n", t.ID, t.Status, t.Title, t.UnreadCount)
	}
	if len(chats) == 0 {
		fmt.Println("no open chats")
	}
	return nil
}

func cmdTail(ctx context.Context, cfg config.Config, client *api.Client, args []string) error {
	fs := flag.NewFlagSet("tail", flag.ExitOnError)
	id := fs.String("id", "", "tournament id")
	_ = fs.Parse(args)
	if *id == "" {
		return errors.New("tail: -id is required")
	}

	printed := 0
	var view *chat.View
	view = chat.NewView(
		chat.TournamentConversation{Client: client, ID: *id},
		chat.WithPollInterval(cfg.GetPollInterval()),
		chat.WithOnUpdate(func() {
			msgs := view.Messages()
			for _, m := range msgs[printed:] {
				fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Local().Format(time.Kitchen), m.Sender, m.Content)
			}
			printed = len(msgs)
		}),
	)
	if err := view.Open(ctx); err != nil {
		return err
	}
	defer view.Close()

	fmt.Printf("status: %s, following chat, ctrl-c to stop\n", view.Status())
	waitForStopSignal()
	return nil
}

func cmdSend(ctx context.Context, client *api.Client, args []string) error {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	id := fs.String("id", "", "tournament id")
	message := fs.String("message", "", "message content")
	_ = fs.Parse(args)
	if *id == "" || *message == "" {
		return errors.New("send: -id and -message are required")
	}

	msg, err := client.SendTournamentMessage(ctx, *id, *message)
	if err != nil {
		return fmt.Errorf("message may not have been delivered: %w", err)
	}
	fmt.Printf("delivered %s\n", msg.ID)
	return nil
}

func cmdWatch(coord *session.Coordinator) error {
	if !coord.IsAuthenticated() {
		return errors.New("not signed in")
	}
	banner(coord)
	fmt.Println("watching balance updates, ctrl-c to stop")
	waitForStopSignal()
	return nil
}

func banner(coord *session.Coordinator) {
	username := utils.Value(coord.Snapshot().User).Username
	if username == "" {
		return
	}
	myFigure := figure.NewFigure(username, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}
