package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/jeeves-cluster-organization/synapse/commbus"
	"github.com/jeeves-cluster-organization/synapse/coreengine/config"
	"github.com/jeeves-cluster-organization/synapse/coreengine/decoder"
	"github.com/jeeves-cluster-organization/synapse/coreengine/orchestrator"
	"github.com/jeeves-cluster-organization/synapse/coreengine/progression"
	"github.com/spf13/cobra"
)

const chatHelp = `Comandos:
  /etapa <ETAPA> <texto>  envia o texto direto ao agente da etapa
  /progresso              mostra o andamento do pipeline
  /artefato <ETAPA>       mostra o último artefato da etapa
  /etapas                 lista as etapas
  /eventos                mostra os últimos eventos da sessão
  /ajuda                  mostra esta ajuda
  /sair                   encerra`

var (
	warningStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	progressStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	suggestionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	promptStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)
)

type chatOptions struct {
	userID string
	plain  bool
	width  int
}

func chatCmd(opts *globalOptions) *cobra.Command {
	var copts chatOptions

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start a terminal conversation with the orchestrator",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.logLevel == "" && !opts.verbose {
				opts.logLevel = "ERROR"
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, opts)
			if err != nil {
				return err
			}
			return runChat(ctx, a, cmd.InOrStdin(), cmd.OutOrStdout(), copts)
		},
	}
	cmd.Flags().StringVar(&copts.userID, "user", "", "User identifier recorded on the session")
	cmd.Flags().BoolVar(&copts.plain, "plain", false, "Print raw Markdown without styling")
	cmd.Flags().IntVar(&copts.width, "width", 100, "Word-wrap width")
	return cmd
}

// chat is one terminal conversation.
type chat struct {
	app       *app
	out       io.Writer
	plain     bool
	renderer  *glamour.TermRenderer
	sessionID string
}

func runChat(ctx context.Context, a *app, in io.Reader, out io.Writer, opts chatOptions) error {
	c := &chat{app: a, out: out, plain: opts.plain}
	if !opts.plain {
		width := opts.width
		if width <= 0 {
			width = 100
		}
		r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(width))
		if err != nil {
			a.logger.Warn("markdown_renderer_unavailable", "error", err.Error())
		} else {
			c.renderer = r
		}
	}

	for _, w := range a.orch.Warnings() {
		c.warn("⚠️ " + w)
	}

	sess := a.service.Start(ctx, opts.userID)
	c.sessionID = sess.ID
	defer func() {
		if err := a.service.End(context.Background(), c.sessionID); err != nil {
			a.logger.Warn("chat_session_end_failed", "error", err.Error())
		}
	}()
	for _, m := range sess.Messages {
		c.markdown(m.Content)
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		c.prompt()
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			quit, err := c.command(ctx, line)
			if err != nil {
				c.warn("⚠️ " + err.Error())
			}
			if quit {
				return nil
			}
			continue
		}
		if err := c.send(ctx, line, ""); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
	return scanner.Err()
}

func (c *chat) send(ctx context.Context, text string, override config.Stage) error {
	res, err := c.app.service.Send(ctx, c.sessionID, text, override)
	if err != nil {
		return err
	}
	c.turn(res)
	return nil
}

// turn prints the assistant entries of one turn followed by the progress line.
func (c *chat) turn(res *orchestrator.TurnResult) {
	for _, m := range res.Appended {
		if m.Role != "assistant" {
			continue
		}
		switch {
		case m.Content == res.SuggestionText && res.SuggestionText != "":
			c.styled(suggestionStyle, m.Content)
		case strings.HasPrefix(m.Content, "⚠️"):
			c.warn(m.Content)
		default:
			c.markdown(m.Content)
		}
	}
	c.styled(progressStyle, progression.RenderProgress(res.Progress))
}

// command handles a slash command. It reports whether the chat should end.
func (c *chat) command(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	name := strings.ToLower(fields[0])
	args := fields[1:]

	switch name {
	case "/sair", "/exit", "/quit":
		return true, nil

	case "/ajuda", "/help":
		fmt.Fprintln(c.out, chatHelp)

	case "/etapas":
		for _, def := range c.app.registry.Definitions() {
			fmt.Fprintf(c.out, "- %s: %s\n", def.Key, def.Title)
		}

	case "/progresso":
		statuses, err := c.app.service.Progress(ctx, c.sessionID)
		if err != nil {
			return false, err
		}
		c.styled(progressStyle, progression.RenderProgress(statuses))

	case "/eventos":
		c.events()

	case "/artefato":
		if len(args) == 0 {
			return false, fmt.Errorf("uso: /artefato <ETAPA>")
		}
		stage, ok := c.app.registry.ParseStage(args[0])
		if !ok {
			return false, fmt.Errorf("etapa desconhecida: %s", args[0])
		}
		snap, err := c.app.service.Snapshot(ctx, c.sessionID)
		if err != nil {
			return false, err
		}
		rec, ok := snap.Artefact(stage)
		if !ok {
			return false, fmt.Errorf("nenhum artefato %s nesta sessão", stage)
		}
		c.markdown(decoder.Render(rec))

	case "/etapa":
		if len(args) < 2 {
			return false, fmt.Errorf("uso: /etapa <ETAPA> <texto>")
		}
		stage, ok := c.app.registry.ParseStage(args[0])
		if !ok {
			return false, fmt.Errorf("etapa desconhecida: %s", args[0])
		}
		return false, c.send(ctx, strings.Join(args[1:], " "), stage)

	default:
		return false, fmt.Errorf("comando desconhecido: %s (use /ajuda)", name)
	}
	return false, nil
}

func (c *chat) events() {
	msgs := c.app.recorder.Messages()
	if len(msgs) > 20 {
		msgs = msgs[len(msgs)-20:]
	}
	for _, msg := range msgs {
		fmt.Fprintf(c.out, "- %s", commbus.GetMessageType(msg))
		switch e := msg.(type) {
		case *commbus.StageRouted:
			fmt.Fprintf(c.out, " %s (%s)", e.Stage, e.Reason)
		case *commbus.AgentInvoked:
			fmt.Fprintf(c.out, " %s %s %dms", e.Stage, e.Status, e.DurationMS)
		case *commbus.ArtefactRecorded:
			fmt.Fprintf(c.out, " %s %s", e.Stage, e.Strategy)
		case *commbus.TurnCompleted:
			fmt.Fprintf(c.out, " %s %s", e.Stage, e.Status)
		}
		fmt.Fprintln(c.out)
	}
}

func (c *chat) prompt() {
	if c.plain {
		fmt.Fprint(c.out, "> ")
		return
	}
	fmt.Fprint(c.out, promptStyle.Render("você › "))
}

func (c *chat) markdown(text string) {
	if c.renderer != nil {
		if rendered, err := c.renderer.Render(text); err == nil {
			fmt.Fprint(c.out, rendered)
			return
		}
	}
	fmt.Fprintln(c.out, text)
}

func (c *chat) warn(text string) {
	c.styled(warningStyle, text)
}

func (c *chat) styled(style lipgloss.Style, text string) {
	if c.plain {
		fmt.Fprintln(c.out, text)
		return
	}
	fmt.Fprintln(c.out, style.Render(text))
}
