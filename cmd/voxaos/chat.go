package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/normanking/voxaos/pkg/types"
)

var (
	promptStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
	toolStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	dangerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87")).Bold(true)
	bannerStyle   = lipgloss.NewStyle().Bold(true).Padding(0, 1).Border(lipgloss.RoundedBorder())
	transcriptTag = dimStyle.Render("you said:")
)

func chatCmd() *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant by typing",
		Long: `Runs the assistant in a terminal loop. Input skips speech recognition and
replies are printed instead of spoken. Dangerous tool calls ask for a y/N
answer before they run.

Type "exit" or press Ctrl-D to leave.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if plain {
				lipgloss.SetColorProfile(termenv.Ascii)
			}
			return runChat(cmd.InOrStdin(), cmd.OutOrStdout(), plain)
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "disable colors and markdown rendering")
	return cmd
}

func runChat(in io.Reader, out io.Writer, plain bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	factory, cleanup, err := bootstrap(ctx, cfg, bootstrapOptions{textOnly: true})
	if err != nil {
		return err
	}
	defer cleanup()

	sess, err := factory.New("")
	if err != nil {
		return err
	}
	defer sess.Close()

	render := markdownRenderer(plain)
	lines := bufio.NewScanner(in)
	// The confirm prompt and the REPL share stdin; only one reads at a time
	// because the REPL is blocked inside the pipeline while a confirmation
	// is pending.
	var stdin sync.Mutex

	go func() {
		for {
			select {
			case req := <-sess.ConfirmRequests():
				stdin.Lock()
				fmt.Fprintf(out, "%s %s %v [y/N] ", dangerStyle.Render("confirm "+req.Risk+":"), req.Tool, req.Args)
				approved := lines.Scan() && strings.EqualFold(strings.TrimSpace(lines.Text()), "y")
				stdin.Unlock()
				sess.Confirm(approved)
			case <-sess.Done():
				return
			}
		}
	}()

	fmt.Fprintln(out, bannerStyle.Render(fmt.Sprintf("VoxaOS v%s  session %s", version, sess.ID)))

	for {
		fmt.Fprint(out, promptStyle.Render("> "))
		stdin.Lock()
		ok := lines.Scan()
		text := strings.TrimSpace(lines.Text())
		stdin.Unlock()
		if !ok {
			fmt.Fprintln(out)
			return lines.Err()
		}
		if text == "" {
			continue
		}
		if text == "exit" || text == "quit" {
			return nil
		}

		for chunk := range sess.Pipeline.SubmitText(ctx, text) {
			printChunk(out, chunk, render)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func printChunk(out io.Writer, chunk types.StreamChunk, render func(string) string) {
	switch chunk.Type {
	case types.ChunkTranscript:
		fmt.Fprintln(out, transcriptTag, chunk.Text)
	case types.ChunkToolStart:
		fmt.Fprintln(out, toolStyle.Render("⚙ "+chunk.Text))
	case types.ChunkText:
		fmt.Fprintln(out, render(chunk.Text))
	case types.ChunkThinking:
		fmt.Fprintln(out, dimStyle.Render(chunk.Text))
	}
}

// markdownRenderer returns a glamour renderer, or identity when plain or
// when glamour cannot start.
func markdownRenderer(plain bool) func(string) string {
	identity := func(s string) string { return s }
	if plain {
		return identity
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return identity
	}
	return func(s string) string {
		if strings.TrimSpace(s) == "" {
			return s
		}
		rendered, err := r.Render(s)
		if err != nil {
			return s
		}
		return strings.TrimRight(rendered, "\n")
	}
}
