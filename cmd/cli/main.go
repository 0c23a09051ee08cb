// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

func main() {
	logger := newLogger()

	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(2)
	}

	ctx := context.Background()
	client := &apiClient{
		baseURL: strings.TrimRight(envOr("IMAGEFLOW_API", "http://localhost:8080"), "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}

	var err error
	switch os.Args[1] {
	case "tools":
		err = runTools(ctx, client)
	case "save":
		err = runSave(ctx, client, os.Args[2:])
	case "list":
		err = runList(ctx, client, os.Args[2:])
	case "history":
		err = runHistory(ctx, client, os.Args[2:])
	case "drive":
		err = runDrive(ctx, client, logger, os.Args[2:])
	default:
		printUsage(os.Stderr)
		os.Exit(2)
	}

	if err != nil {
		logger.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

type apiClient struct {
	baseURL string
	http    *http.Client
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, fmt.Errorf("%s %s: %s (%s)",
			method, path, resp.Status, strings.TrimSpace(string(msg)))
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

type artifactPayload struct {
	FileName string `json:"file_name"`
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type launchResponse struct {
	Target string `json:"target"`
	Run    any    `json:"run"`
}

type arrivalResponse struct {
	SourceTool string `json:"source_tool"`
	FileName   string `json:"file_name"`
	MIMEType   string `json:"mime_type"`
	Data       string `json:"data"`
	Run        any    `json:"run,omitempty"`
	Completed  bool   `json:"completed"`
}

func runTools(ctx context.Context, client *apiClient) error {
	var resp struct {
		Tools []struct {
			ID            string   `json:"id"`
			AcceptedMIMEs []string `json:"accepted_mimes"`
		} `json:"tools"`
	}
	if _, err := client.do(ctx, http.MethodGet, "/tools", nil, &resp); err != nil {
		return err
	}

	for _, tool := range resp.Tools {
		accepts := "any image/*"
		if len(tool.AcceptedMIMEs) > 0 {
			accepts = strings.Join(tool.AcceptedMIMEs, ", ")
		}
		fmt.Printf("%-12s accepts: %s\n", tool.ID, accepts)
	}
	return nil
}

func runSave(ctx context.Context, client *apiClient, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: save <source-tool> <name> <step> [step...]")
	}

	body := map[string]any{
		"name":  args[1],
		"steps": args[2:],
	}

	var def map[string]any
	if _, err := client.do(ctx, http.MethodPost, "/tools/"+args[0]+"/workflows", body, &def); err != nil {
		return err
	}
	fmt.Printf("saved workflow %v (%v)\n", def["name"], def["id"])
	return nil
}

func runList(ctx context.Context, client *apiClient, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: list <source-tool>")
	}

	var resp struct {
		Workflows []struct {
			ID       string   `json:"id"`
			Name     string   `json:"name"`
			Steps    []string `json:"steps"`
			RunCount int      `json:"run_count"`
		} `json:"workflows"`
	}
	if _, err := client.do(ctx, http.MethodGet, "/tools/"+args[0]+"/workflows", nil, &resp); err != nil {
		return err
	}

	for _, wf := range resp.Workflows {
		fmt.Printf("%s  %-20s %s (runs: %d)\n", wf.ID, wf.Name, strings.Join(wf.Steps, " -> "), wf.RunCount)
	}
	return nil
}

func runHistory(ctx context.Context, client *apiClient, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: history <source-tool>")
	}

	var resp struct {
		Entries []struct {
			WorkflowName string    `json:"workflow_name"`
			Steps        []string  `json:"steps"`
			CreatedAt    time.Time `json:"created_at"`
		} `json:"entries"`
	}
	if _, err := client.do(ctx, http.MethodGet, "/tools/"+args[0]+"/history", nil, &resp); err != nil {
		return err
	}

	for _, entry := range resp.Entries {
		fmt.Printf("%s  %-20s %s\n",
			entry.CreatedAt.Format(time.RFC3339),
			entry.WorkflowName,
			strings.Join(entry.Steps, " -> "),
		)
	}
	return nil
}

// runDrive starts a saved workflow from an image file and walks the
// whole pipeline: receive at each target view, feed the artifact back
// in as that tool's output, repeat until the run completes. Stands in
// for the tool views during development.
func runDrive(ctx context.Context, client *apiClient, logger *slog.Logger, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: drive <workflow-id> <source-tool> <image-file>")
	}
	workflowID, sourceTool, path := args[0], args[1], args[2]

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	a := artifactPayload{
		FileName: filepath.Base(path),
		MIMEType: mimeFor(path),
		Data:     base64.StdEncoding.EncodeToString(data),
	}

	var launch launchResponse
	if _, err := client.do(ctx, http.MethodPost, "/workflows/"+workflowID+"/runs", map[string]any{
		"source_tool": sourceTool,
		"artifact":    a,
	}, &launch); err != nil {
		return err
	}
	logger.Info("run started", "workflow_id", workflowID, "target", launch.Target)

	for step := 0; step < 16; step++ {
		var arrival arrivalResponse
		status, err := client.do(ctx, http.MethodGet, "/tools/"+launch.Target+"/handoff", nil, &arrival)
		if err != nil {
			return err
		}
		if status == http.StatusNoContent {
			return fmt.Errorf("no pending handoff at %s", launch.Target)
		}

		logger.Info("handoff received",
			"tool", launch.Target,
			"file_name", arrival.FileName,
			"completed", arrival.Completed,
		)
		if arrival.Completed {
			fmt.Printf("pipeline complete at %s (%s)\n", launch.Target, arrival.FileName)
			return nil
		}

		next := launchResponse{}
		if _, err := client.do(ctx, http.MethodPost, "/tools/"+launch.Target+"/handoff", map[string]any{
			"artifact": artifactPayload{
				FileName: arrival.FileName,
				MIMEType: arrival.MIMEType,
				Data:     arrival.Data,
			},
			"run": arrival.Run,
		}, &next); err != nil {
			return err
		}
		launch = next
	}

	return fmt.Errorf("pipeline did not complete")
}

func mimeFor(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(os.Getenv("LOG_LEVEL")),
	}))
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func printUsage(w *os.File) {
	_, _ = fmt.Fprintln(w, "usage: imageflow-cli <tools|save|list|history|drive> [args]")
	_, _ = fmt.Fprintln(w, "  tools                                        list the tool catalog")
	_, _ = fmt.Fprintln(w, "  save <source-tool> <name> <step> [step...]   save a workflow")
	_, _ = fmt.Fprintln(w, "  list <source-tool>                           list saved workflows")
	_, _ = fmt.Fprintln(w, "  history <source-tool>                        show recent runs")
	_, _ = fmt.Fprintln(w, "  drive <workflow-id> <source-tool> <image>    run a pipeline end to end")
}
