package main

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/agentboard/agentboard/internal/task/models"
)

const contentWidth = 80

func newLogsCmd() *cobra.Command {
	var taskID string
	cmd := &cobra.Command{
		Use:   "logs <project-id>",
		Short: "Show a project's execution log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var logs []*models.ExecutionLog
			client := newAPIClient(serverURL(cmd))
			if err := client.getJSON(cmd.Context(), "/projects/"+url.PathEscape(args[0])+"/logs", &logs); err != nil {
				return err
			}
			renderLogs(cmd.OutOrStdout(), logs, taskID)
			return nil
		},
	}
	cmd.Flags().StringVar(&taskID, "task", "", "only rows of this task")
	return cmd
}

func renderLogs(out io.Writer, logs []*models.ExecutionLog, taskID string) {
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.AppendHeader(table.Row{"Time", "Task", "Type", "Content"})
	for _, entry := range logs {
		if taskID != "" && entry.TaskID != taskID {
			continue
		}
		tw.AppendRow(table.Row{
			entry.Timestamp.Local().Format(time.TimeOnly),
			entry.TaskID,
			entry.Type,
			clip(entry.Content, contentWidth),
		})
	}
	tw.Render()
}

func newSheetCmd() *cobra.Command {
	var taskID string
	cmd := &cobra.Command{
		Use:   "sheet <project-id>",
		Short: "Print a project's research sheets as markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var sheets []*models.ResearchSheet
			client := newAPIClient(serverURL(cmd))
			if err := client.getJSON(cmd.Context(), "/projects/"+url.PathEscape(args[0])+"/research-sheets", &sheets); err != nil {
				return err
			}
			return renderSheets(cmd.OutOrStdout(), sheets, taskID)
		},
	}
	cmd.Flags().StringVar(&taskID, "task", "", "only the sheet of this task")
	return cmd
}

func renderSheets(out io.Writer, sheets []*models.ResearchSheet, taskID string) error {
	printed := 0
	for _, sheet := range sheets {
		if taskID != "" && sheet.TaskID != taskID {
			continue
		}
		if printed > 0 {
			fmt.Fprintln(out, "\n---")
		}
		fmt.Fprintf(out, "<!-- task %s, %s -->\n%s\n", sheet.TaskID, sheet.CreatedAt.Format(time.RFC3339), sheet.Content)
		printed++
	}
	if printed == 0 {
		return fmt.Errorf("no research sheets found")
	}
	return nil
}

// clip shortens s to one line of at most n runes.
func clip(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
