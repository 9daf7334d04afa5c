// ABOUTME: Interactive loop for the terminal client: prompt, slash
// ABOUTME: commands, streamed output, and conversation persistence.

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/lanternworks/atelier/internal/chat"
	"github.com/lanternworks/atelier/internal/config"
	"github.com/lanternworks/atelier/internal/engine"
	"github.com/lanternworks/atelier/internal/render"
	"github.com/lanternworks/atelier/internal/store"
)

// tickInterval paces the engine while a turn is in flight.
const tickInterval = 10 * time.Millisecond

const defaultTitle = "New conversation"

type app struct {
	cfg         *config.Config
	engine      *engine.Engine
	log         *chat.Log
	store       store.Store
	saver       *store.Saver
	broadcaster *chat.Broadcaster
	renderer    *render.Renderer
	settings    userSettings
	logger      *slog.Logger

	conversation store.Conversation
	unsubscribe  func()
}

func newApp(cfg *config.Config, eng *engine.Engine, log *chat.Log, db store.Store, saver *store.Saver, broadcaster *chat.Broadcaster, settings userSettings, logger *slog.Logger) *app {
	opts := []render.Option{}
	if color.NoColor {
		opts = append(opts, render.WithColorDisabled())
	}
	return &app{
		cfg:         cfg,
		engine:      eng,
		log:         log,
		store:       db,
		saver:       saver,
		broadcaster: broadcaster,
		renderer:    render.New(opts...),
		settings:    settings,
		logger:      logger.With("component", "app"),
	}
}

func (a *app) run(ctx context.Context) error {
	if err := a.openInitialConversation(ctx); err != nil {
		return err
	}
	defer func() {
		a.saver.Flush()
		a.settings.LastConversation = a.conversation.ID
		saveSettings(settingsPath(), a.settings)
		if a.unsubscribe != nil {
			a.unsubscribe()
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")

		inputCh := make(chan string, 1)
		errCh := make(chan error, 1)
		go func() {
			if scanner.Scan() {
				inputCh <- scanner.Text()
			} else {
				if err := scanner.Err(); err != nil {
					errCh <- err
				} else {
					errCh <- io.EOF
				}
			}
		}()

		var input string
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		case input = <-inputCh:
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			quit, err := a.handleCommand(ctx, input)
			if err != nil {
				fmt.Println(color.RedString("[error] %v", err))
			}
			if quit {
				return nil
			}
			fmt.Println()
			continue
		}

		if err := a.sendAndStream(ctx, input); err != nil {
			fmt.Println(color.RedString("[error] %v", err))
		}
		fmt.Println()
	}
}

// openInitialConversation resumes the last open conversation when it
// still exists, otherwise starts a fresh one.
func (a *app) openInitialConversation(ctx context.Context) error {
	if id := a.settings.LastConversation; id != "" {
		if err := a.switchConversation(ctx, id); err == nil {
			return nil
		}
	}
	return a.newConversation(ctx)
}

func (a *app) newConversation(ctx context.Context) error {
	conv, err := a.store.CreateConversation(ctx, defaultTitle)
	if err != nil {
		return fmt.Errorf("creating conversation: %w", err)
	}
	a.saver.Flush()
	a.engine.Clear()
	a.attach(ctx, *conv)
	return nil
}

func (a *app) switchConversation(ctx context.Context, id string) error {
	conv, err := a.store.GetConversation(ctx, id)
	if err != nil {
		return fmt.Errorf("loading conversation: %w", err)
	}
	msgs, err := a.store.LoadMessages(ctx, id)
	if err != nil {
		return fmt.Errorf("loading messages: %w", err)
	}
	a.saver.Flush()
	a.engine.Clear()
	a.log.Restore(msgs)
	a.attach(ctx, *conv)
	return nil
}

// attach points the engine and the event subscription at a
// conversation.
func (a *app) attach(ctx context.Context, conv store.Conversation) {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	a.conversation = conv
	a.engine.SetConversationID(conv.ID)

	subCtx, cancel := context.WithCancel(ctx)
	events, subID := a.broadcaster.Subscribe(subCtx, conv.ID)
	go a.printEvents(events)
	a.unsubscribe = func() {
		a.broadcaster.Unsubscribe(conv.ID, subID)
		cancel()
	}
}

// printEvents renders engine events as they arrive. Deltas stream raw;
// everything else gets a one-line notice.
func (a *app) printEvents(events <-chan chat.Event) {
	for ev := range events {
		switch ev.Type {
		case chat.EventDelta:
			fmt.Print(ev.Delta)
		case chat.EventMessage:
			if ev.Message != nil && ev.Message.Role == chat.RoleSystem {
				fmt.Println(color.YellowString("[system] %s", ev.Message.Content))
			}
		case chat.EventToolStart:
			fmt.Println(color.YellowString("[tool] %s", ev.ToolName))
		case chat.EventToolResult:
			fmt.Println(color.GreenString("[tool done] %s", ev.ToolName))
		case chat.EventError:
			fmt.Println(color.RedString("[error] %s", ev.Err))
		case chat.EventTurnEnd:
			fmt.Println()
		}
	}
}

// sendAndStream submits a user message and drives the engine until
// the turn sequence finishes.
func (a *app) sendAndStream(ctx context.Context, text string) error {
	if err := a.engine.Send(ctx, text); err != nil {
		return err
	}
	a.maybeRetitle(ctx, text)

	for a.engine.Tick(ctx) {
		select {
		case <-ctx.Done():
			a.engine.Stop(context.Background())
			return nil
		case <-time.After(tickInterval):
		}
	}

	a.saver.Schedule(a.conversation.ID, a.log.Messages())
	return nil
}

// maybeRetitle names a fresh conversation after its first message.
func (a *app) maybeRetitle(ctx context.Context, text string) {
	if a.conversation.Title != defaultTitle {
		return
	}
	title := text
	if len(title) > 50 {
		title = title[:47] + "..."
	}
	if err := a.store.RenameConversation(ctx, a.conversation.ID, title); err != nil {
		a.logger.Warn("renaming conversation", "error", err)
		return
	}
	a.conversation.Title = title
}

func (a *app) handleCommand(ctx context.Context, input string) (quit bool, err error) {
	cmd, args, _ := strings.Cut(input, " ")
	args = strings.TrimSpace(args)

	switch cmd {
	case "/quit", "/exit", "/q":
		return true, nil
	case "/help":
		printHelp()
	case "/stop":
		a.engine.Stop(ctx)
		fmt.Println("Stop requested.")
	case "/clear":
		a.engine.Clear()
		a.saver.Schedule(a.conversation.ID, nil)
		fmt.Println("Conversation cleared.")
	case "/new":
		if err := a.newConversation(ctx); err != nil {
			return false, err
		}
		fmt.Println("Started a new conversation.")
	case "/conversations":
		return false, a.listConversations(ctx)
	case "/switch":
		if args == "" {
			return false, fmt.Errorf("usage: /switch <id>")
		}
		if err := a.switchConversation(ctx, args); err != nil {
			return false, err
		}
		a.printTranscript()
	case "/delete":
		if args == "" {
			return false, fmt.Errorf("usage: /delete <id>")
		}
		return false, a.deleteConversation(ctx, args)
	case "/tools":
		a.listTools()
	default:
		fmt.Printf("Unknown command %s. /help for commands.\n", cmd)
	}
	return false, nil
}

func printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  /new            Start a new conversation")
	fmt.Println("  /conversations  List saved conversations")
	fmt.Println("  /switch <id>    Open a saved conversation")
	fmt.Println("  /delete <id>    Delete a saved conversation")
	fmt.Println("  /clear          Clear the current conversation")
	fmt.Println("  /stop           Stop the in-flight request")
	fmt.Println("  /tools          List available local tools")
	fmt.Println("  /help           Show this help")
	fmt.Println("  /quit           Exit")
}

func (a *app) listConversations(ctx context.Context) error {
	convs, err := a.store.ListConversations(ctx)
	if err != nil {
		return fmt.Errorf("listing conversations: %w", err)
	}
	if len(convs) == 0 {
		fmt.Println("No saved conversations")
		return nil
	}
	fmt.Println("Conversations:")
	for _, c := range convs {
		marker := "  "
		if c.ID == a.conversation.ID {
			marker = color.CyanString("* ")
		}
		fmt.Printf("%s%s  %s  (%s)\n", marker, c.ID, c.Title, c.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func (a *app) deleteConversation(ctx context.Context, id string) error {
	if err := a.store.DeleteConversation(ctx, id); err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}
	fmt.Println("Deleted.")
	if id == a.conversation.ID {
		return a.newConversation(ctx)
	}
	return nil
}

func (a *app) listTools() {
	all := a.engine.Registry().Tools()
	if len(all) == 0 {
		fmt.Println("No tools registered")
		return
	}
	fmt.Println("Tools:")
	for _, t := range all {
		fmt.Printf("  %s  %s\n", color.CyanString("%-24s", t.Name), t.Description)
	}
}

// printTranscript renders the loaded history after a switch.
func (a *app) printTranscript() {
	msgs := a.log.Messages()
	fmt.Printf("Opened %q (%d messages)\n", a.conversation.Title, len(msgs))
	fmt.Println(strings.Repeat("-", 60))
	for _, m := range msgs {
		switch m.Role {
		case chat.RoleUser:
			fmt.Println(color.New(color.Bold).Sprint("You: ") + m.Content)
		case chat.RoleAssistant:
			if m.Content != "" {
				fmt.Println(a.renderer.Render(m.Content))
			}
			for _, tc := range m.ToolCalls {
				fmt.Println(color.YellowString("[tool] %s", tc.Name))
			}
		case chat.RoleSystem:
			fmt.Println(color.YellowString("[system] %s", m.Content))
		case chat.RoleTool:
			// Tool payloads are noise in a transcript.
		}
	}
	fmt.Println(strings.Repeat("-", 60))
}
