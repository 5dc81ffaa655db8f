package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hdh-bench/platform/pkg/common/models"
	"github.com/hdh-bench/platform/pkg/tasks"
)

// AgentClient drives the agent under test: one POST per task, the agent
// explores the six systems on its own and returns its final JSON answer.
type AgentClient struct {
	url    string
	client *http.Client
}

func NewAgentClient(url string, timeout time.Duration) *AgentClient {
	return &AgentClient{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type taskRequest struct {
	TaskID   string            `json:"task_id"`
	Prompt   string            `json:"prompt"`
	MaxTurns int               `json:"max_turns"`
	Services map[string]string `json:"services"`
}

type taskEnvelope struct {
	Response map[string]any `json:"response"`
	Turns    int            `json:"turns"`
	Raw      string         `json:"raw,omitempty"`
}

// RunTask executes one task against the agent. Failures never propagate as
// errors: a dead agent or garbage output becomes an empty response that the
// scoring engine will score as malformed.
func (c *AgentClient) RunTask(ctx context.Context, inst tasks.Instance, services map[string]string) models.AgentResponse {
	started := time.Now()
	result := models.AgentResponse{TaskID: inst.Task.ID}

	body, err := json.Marshal(taskRequest{
		TaskID:   inst.Task.ID,
		Prompt:   inst.Prompt,
		MaxTurns: inst.Task.MaxTurns,
		Services: services,
	})
	if err != nil {
		result.Error = err.Error()
		return result
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		result.Error = err.Error()
		return result
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			result.TimedOut = true
		}
		result.Error = err.Error()
		result.TimeSeconds = time.Since(started).Seconds()
		return result
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		result.Error = err.Error()
		result.TimeSeconds = time.Since(started).Seconds()
		return result
	}
	if resp.StatusCode != http.StatusOK {
		result.Error = fmt.Sprintf("agent returned status %d", resp.StatusCode)
		result.TimeSeconds = time.Since(started).Seconds()
		return result
	}

	var envelope taskEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Response != nil {
		result.Response = envelope.Response
		result.Turns = envelope.Turns
	} else if parsed, perr := ParseAgentJSON(string(raw)); perr == nil {
		result.Response = parsed
	} else {
		result.Error = "unparseable agent output: " + perr.Error()
	}

	result.TimeSeconds = time.Since(started).Seconds()
	return result
}

// ParseAgentJSON extracts a JSON object from free-form agent output.
// Agents wrap answers in markdown fences or surround them with prose often
// enough that strict parsing throws away scoreable responses.
func ParseAgentJSON(text string) (map[string]any, error) {
	text = strings.TrimSpace(text)

	if idx := strings.Index(text, "```"); idx >= 0 {
		rest := text[idx+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end >= 0 {
			text = strings.TrimSpace(rest[:end])
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, errors.New("no JSON object found")
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &parsed); err != nil {
		return nil, err
	}
	return parsed, nil
}
