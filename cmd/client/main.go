package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cbodonnell/arcade/pkg/client/network"
	"github.com/cbodonnell/arcade/pkg/game"
	"github.com/cbodonnell/arcade/pkg/log"
	"github.com/cbodonnell/arcade/pkg/messages"
	"github.com/cbodonnell/arcade/pkg/queue"
)

const usage = `commands:
  create <whack-a-mole|typing-test|memory>
  start | restart | reset [confirm]
  hit <hole> | flip <card> | type <text>
  close | quit`

var errQuit = errors.New("quit")

// command is a parsed input line. Exactly one of create, action or close is set.
type command struct {
	create game.Kind
	action *game.Action
	close  bool
}

func parseCommand(line string) (*command, error) {
	verb, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	switch verb {
	case "quit", "exit":
		return nil, errQuit
	case "create":
		if rest == "" {
			return nil, fmt.Errorf("create needs a game kind")
		}
		return &command{create: game.Kind(rest)}, nil
	case "close":
		return &command{close: true}, nil
	case "start":
		return &command{action: &game.Action{Type: game.ActionStart}}, nil
	case "restart":
		return &command{action: &game.Action{Type: game.ActionRestart}}, nil
	case "reset":
		return &command{action: &game.Action{Type: game.ActionReset, Confirm: rest == "confirm"}}, nil
	case "hit", "flip":
		target, err := strconv.Atoi(rest)
		if err != nil {
			return nil, fmt.Errorf("%s needs a number", verb)
		}
		t := game.ActionHit
		if verb == "flip" {
			t = game.ActionFlip
		}
		return &command{action: &game.Action{Type: t, Target: target}}, nil
	case "type":
		return &command{action: &game.Action{Type: game.ActionInput, Text: rest}}, nil
	default:
		return nil, fmt.Errorf("unknown command %q", verb)
	}
}

func main() {
	serverURL := flag.String("server", network.DefaultServerURL, "WebSocket server URL")
	token := flag.String("token", "", "ID token")
	session := flag.String("session", "", "Browser session id to resume")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}
	logger := log.New(os.Stderr, "", log.DefaultLoggerFlag, parsedLogLevel).With("service", "arcade-client")
	log.SetDefaultLogger(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverMessageQueue := queue.NewInMemoryQueue(1024)
	networkManager := network.NewNetworkManager(network.NewNetworkManagerOptions{
		ServerURL:    *serverURL,
		Token:        *token,
		Session:      *session,
		MessageQueue: serverMessageQueue,
	})
	if err := networkManager.Start(ctx); err != nil {
		log.Error("Failed to connect: %v", err)
		os.Exit(1)
	}
	defer networkManager.Stop()

	// current is the most recently created instance
	var current atomic.Value
	current.Store("")
	go printMessages(ctx, serverMessageQueue, &current, networkManager.Done())

	fmt.Println(usage)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		instance := current.Load().(string)
		cmd, err := parseCommand(scanner.Text())
		if errors.Is(err, errQuit) {
			return
		}
		if err != nil {
			fmt.Println(err)
			continue
		}

		var msg *messages.Message
		switch {
		case cmd.create != "":
			msg, err = messages.NewMessage(messages.MessageTypeClientCreate, "", &messages.ClientCreate{Kind: cmd.create})
		case cmd.close:
			msg, err = messages.NewMessage(messages.MessageTypeClientClose, instance, nil)
		default:
			msg, err = messages.NewMessage(messages.MessageTypeClientAction, instance, &messages.ClientAction{Action: *cmd.action})
		}
		if err != nil {
			log.Error("Failed to build message: %v", err)
			continue
		}
		if err := networkManager.SendMessage(ctx, msg); err != nil {
			log.Error("Failed to send message: %v", err)
			return
		}
	}
}

// printMessages drains the server message queue until the connection is lost.
func printMessages(ctx context.Context, q queue.Queue, current *atomic.Value, done <-chan struct{}) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			fmt.Println("disconnected")
			os.Exit(1)
		case <-ticker.C:
			items, err := q.ReadAllMessages()
			if err != nil {
				log.Error("Failed to read server messages: %v", err)
				continue
			}
			for _, item := range items {
				msg := item.(*messages.Message)
				if msg.Type == messages.MessageTypeServerCreated {
					current.Store(msg.Instance)
				}
				fmt.Println(formatMessage(msg))
			}
		}
	}
}

func formatMessage(msg *messages.Message) string {
	var b strings.Builder
	b.WriteString(msg.Type.String())
	if msg.Instance != "" {
		b.WriteString(" ")
		b.WriteString(msg.Instance)
	}
	if len(msg.Payload) > 0 {
		var v interface{}
		if err := json.Unmarshal(msg.Payload, &v); err == nil {
			if compact, err := json.Marshal(v); err == nil {
				b.WriteString(" ")
				b.Write(compact)
			}
		}
	}
	return b.String()
}
