package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/Divas-Gupta30/hmo-assistant/internal/conversation"
	"github.com/Divas-Gupta30/hmo-assistant/internal/storage"
)

// ChatCmd runs an interactive conversation in the terminal.
// Usage: agent chat [--session <id>] [--plain]
type ChatCmd struct {
	Session string `short:"s" long:"session" description:"resume and persist a stored session"`
	Plain   bool   `long:"plain" description:"print replies without markdown rendering"`
}

func (c *ChatCmd) Execute(_ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := context.Background()

	wf, _, err := a.workflow(ctx)
	if err != nil {
		return err
	}

	var (
		store storage.SessionStore
		state *conversation.State
	)
	if c.Session != "" {
		if store, err = a.sessions(ctx); err != nil {
			return err
		}
		state, err = store.Load(ctx, c.Session)
		if errors.Is(err, storage.ErrSessionNotFound) {
			state = conversation.New()
			state.ID = c.Session
		} else if err != nil {
			return err
		}
	}

	render := c.renderer()
	fmt.Println(render(conversation.WelcomeMessage))

	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\nYou: ")
		if !in.Scan() {
			return ignoreEOF(in.Err())
		}
		line := strings.TrimSpace(in.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		res, err := wf.Turn(ctx, state, line)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			continue
		}
		state = res.State
		if res.ProfileCollected {
			fmt.Printf("\n[profile collected: %s, %s %s]\n", state.Profile.FullName(), state.Profile.HMO.Title(), state.Profile.InsuranceTier.Title())
		}
		fmt.Println("\nAssistant:")
		fmt.Println(render(res.Reply))

		if store != nil {
			if err := store.Save(ctx, state); err != nil {
				a.logger.Error("saving session failed", "session", state.ID, "error", err)
			}
		}
	}
}

func (c *ChatCmd) renderer() func(string) string {
	plain := func(s string) string { return s }
	if c.Plain {
		return plain
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return plain
	}
	return func(s string) string {
		out, err := r.Render(s)
		if err != nil {
			return s
		}
		return strings.TrimRight(out, "\n")
	}
}

func ignoreEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
