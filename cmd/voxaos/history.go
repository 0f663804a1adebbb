package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/normanking/voxaos/internal/memory"
)

func historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent captured interactions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			capture, err := memory.NewCaptureLog(cfg.Memory.Capture.DBPath)
			if err != nil {
				return fmt.Errorf("failed to open capture log: %w", err)
			}
			defer capture.Close()

			records, err := capture.Recent(context.Background(), limit)
			if err != nil {
				return err
			}
			printHistory(cmd.OutOrStdout(), records)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of interactions to show")
	return cmd
}

func printHistory(w io.Writer, records []memory.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, dimStyle.Render("(no interactions captured yet)"))
		return
	}
	for _, r := range records {
		header := fmt.Sprintf("#%d  %s  session %s", r.ID, r.Timestamp, r.SessionID)
		if r.SkillUsed != nil {
			header += "  skill " + *r.SkillUsed
		}
		fmt.Fprintln(w, promptStyle.Render(header))
		fmt.Fprintf(w, "  you: %s\n", r.UserTranscript)
		fmt.Fprintf(w, "  assistant: %s\n", strings.TrimSpace(r.AssistantResponse))
		if len(r.LatencyMs) > 0 {
			fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("  latency: %s", r.LatencyMs)))
		}
	}
}
