package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/agentboard/agentboard/internal/orchestrator/streaming"
	v1 "github.com/agentboard/agentboard/pkg/api/v1"
)

func newRunCmd() *cobra.Command {
	var (
		file      string
		projectID string
		mode      string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a run and follow its progress",
		Long: `Start a run on the server and print its progress until it ends.

Either name a stored project with --project (its unfinished tasks run in
priority order) or describe the run in a YAML file:

  projectName: Landing page
  mode: build
  tasks:
    - id: hero
      title: Build the hero section
      description: Full-width banner with a call to action`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var req v1.RunRequest
			if file != "" {
				loaded, err := loadRunFile(file)
				if err != nil {
					return err
				}
				req = *loaded
			}
			if projectID != "" {
				req.ProjectID = projectID
			}
			if mode != "" {
				req.Mode = v1.Mode(mode)
			}
			if req.ProjectID == "" && len(req.Tasks) == 0 {
				return errors.New("either --file or --project is required")
			}
			return executeRun(cmd.Context(), newAPIClient(serverURL(cmd)), req, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML run file")
	cmd.Flags().StringVarP(&projectID, "project", "p", "", "project id")
	cmd.Flags().StringVar(&mode, "mode", "", "build or research (defaults to the project's mode)")
	return cmd
}

func loadRunFile(path string) (*v1.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read run file: %w", err)
	}
	var req v1.RunRequest
	if err := yaml.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("parse run file %s: %w", path, err)
	}
	for i := range req.Tasks {
		if req.Tasks[i].ID == "" {
			req.Tasks[i].ID = fmt.Sprintf("task-%d", i+1)
		}
		if req.Tasks[i].Title == "" {
			return nil, fmt.Errorf("parse run file %s: task %d has no title", path, i+1)
		}
	}
	return &req, nil
}

// executeRun posts the run and prints each event. It fails when the stream
// ends with an error event or without any terminal event.
func executeRun(ctx context.Context, client *apiClient, req v1.RunRequest, out io.Writer) error {
	resp, err := client.do(ctx, http.MethodPost, "/execute", req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	dec := streaming.NewDecoder(resp.Body)
	for {
		ev, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return errors.New("stream ended before the run finished")
		}
		if err != nil {
			return err
		}
		printEvent(out, ev)
		switch ev.Type {
		case v1.EventDone:
			return nil
		case v1.EventError:
			return fmt.Errorf("run failed: %s", ev.Content)
		}
	}
}

func printEvent(out io.Writer, ev v1.ProgressEvent) {
	switch ev.Type {
	case v1.EventTaskStart:
		fmt.Fprintf(out, "▶ %s\n", ev.TaskID)
	case v1.EventTaskProgress, v1.EventLog:
		fmt.Fprintf(out, "  %s\n", ev.Content)
	case v1.EventTaskComplete:
		fmt.Fprintf(out, "✓ %s\n", ev.TaskID)
	case v1.EventTaskFailed:
		fmt.Fprintf(out, "✗ %s: %s\n", ev.TaskID, ev.Content)
	case v1.EventResearchResult:
		fmt.Fprintf(out, "\n%s\n\n", ev.Markdown)
	case v1.EventDone:
		fmt.Fprintln(out, ev.Content)
	case v1.EventError:
		fmt.Fprintf(out, "error: %s\n", ev.Content)
	}
}
