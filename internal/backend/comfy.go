package backend

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"resty.dev/v3"

	"github.com/shotforge/shotforge/internal/ctxlog"
	"github.com/shotforge/shotforge/internal/pipeline"
	"github.com/shotforge/shotforge/internal/template"
)

// ComfyUI talks to a ComfyUI server: jobs are queued over HTTP and their
// lifecycle is observed on the server's websocket event stream.
type ComfyUI struct {
	client   *resty.Client
	wsURL    string
	clientID string
	dialer   *websocket.Dialer
}

// NewComfyUI builds an adapter for the server at baseURL (e.g.
// "http://127.0.0.1:8188"). Each adapter registers with its own client id so
// the event stream only carries this client's jobs.
func NewComfyUI(baseURL string) (*ComfyUI, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL %q: %w", baseURL, err)
	}

	clientID := uuid.NewString()
	wsScheme := "ws"
	if u.Scheme == "https" {
		wsScheme = "wss"
	}
	wsURL := fmt.Sprintf("%s://%s/ws?clientId=%s", wsScheme, u.Host, clientID)

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second)

	return &ComfyUI{
		client:   client,
		wsURL:    wsURL,
		clientID: clientID,
		dialer:   websocket.DefaultDialer,
	}, nil
}

// Close releases the underlying HTTP client resources.
func (c *ComfyUI) Close() error {
	return c.client.Close()
}

type promptResponse struct {
	PromptID string `json:"prompt_id"`
}

// Submit queues a patched graph and returns the backend's prompt id.
func (c *ComfyUI) Submit(ctx context.Context, graph template.Graph) (string, error) {
	var result promptResponse
	res, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]any{"prompt": graph, "client_id": c.clientID}).
		SetResult(&result).
		Post("/prompt")
	if err != nil {
		return "", &pipeline.TransientBackendError{Reason: "submit request failed", Err: err}
	}
	if res.IsError() {
		if res.StatusCode() >= 500 {
			return "", &pipeline.TransientBackendError{
				Reason: fmt.Sprintf("backend returned %d", res.StatusCode()),
			}
		}
		return "", &pipeline.PermanentBackendError{
			Reason: fmt.Sprintf("backend rejected job (%d): %s", res.StatusCode(), res.String()),
		}
	}
	if result.PromptID == "" {
		return "", &pipeline.PermanentBackendError{Reason: "backend returned no prompt id"}
	}
	return result.PromptID, nil
}

// Websocket event envelope and the payloads the adapter cares about.
type wsMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type progressData struct {
	Value int `json:"value"`
	Max   int `json:"max"`
}

type executedData struct {
	PromptID string `json:"prompt_id"`
	Output   struct {
		Images []artifactFile `json:"images"`
		Gifs   []artifactFile `json:"gifs"`
	} `json:"output"`
}

type artifactFile struct {
	Filename string `json:"filename"`
}

type errorData struct {
	PromptID         string `json:"prompt_id"`
	ExceptionMessage string `json:"exception_message"`
}

// AwaitCompletion watches the event stream until the given job reaches a
// terminal state. Progress events are logged but do not affect task state.
func (c *ComfyUI) AwaitCompletion(ctx context.Context, jobID string) (Completion, error) {
	logger := ctxlog.FromContext(ctx).With("jobID", jobID)

	conn, _, err := c.dialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return Completion{}, &pipeline.TransientBackendError{Reason: "websocket dial failed", Err: err}
	}
	defer conn.Close()

	// Unblock ReadMessage when the caller cancels.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return Completion{}, ctx.Err()
			}
			return Completion{}, &pipeline.TransientBackendError{Reason: "event stream closed", Err: err}
		}

		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			// Binary preview frames and other noise on the stream.
			continue
		}

		switch msg.Type {
		case "progress":
			var p progressData
			if err := json.Unmarshal(msg.Data, &p); err == nil && p.Max > 0 {
				logger.Debug("Generation progress.", "value", p.Value, "max", p.Max)
			}
		case "executing":
			var e struct {
				Node     *string `json:"node"`
				PromptID string  `json:"prompt_id"`
			}
			if err := json.Unmarshal(msg.Data, &e); err == nil && e.Node != nil {
				logger.Debug("Executing node.", "node", *e.Node)
			}
		case "executed":
			var e executedData
			if err := json.Unmarshal(msg.Data, &e); err != nil || e.PromptID != jobID {
				continue
			}
			return Completion{ArtifactRef: artifactRef(e, jobID)}, nil
		case "execution_error", "error":
			var e errorData
			if err := json.Unmarshal(msg.Data, &e); err != nil || (e.PromptID != "" && e.PromptID != jobID) {
				continue
			}
			reason := e.ExceptionMessage
			if reason == "" {
				reason = "backend reported an execution error"
			}
			return Completion{}, &pipeline.PermanentBackendError{Reason: reason}
		}
	}
}

func artifactRef(e executedData, fallback string) string {
	if len(e.Output.Images) > 0 {
		return e.Output.Images[0].Filename
	}
	if len(e.Output.Gifs) > 0 {
		return e.Output.Gifs[0].Filename
	}
	return fallback
}

// Cancel interrupts whatever the backend is currently executing.
func (c *ComfyUI) Cancel(ctx context.Context, jobID string) error {
	res, err := c.client.R().SetContext(ctx).Post("/interrupt")
	if err != nil {
		return fmt.Errorf("failed to cancel job %s: %w", jobID, err)
	}
	if res.IsError() {
		return fmt.Errorf("failed to cancel job %s: backend returned %d", jobID, res.StatusCode())
	}
	return nil
}
