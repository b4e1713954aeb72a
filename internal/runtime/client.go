package runtime

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultInvokeTimeout bounds one invocation when the caller's context
// carries no deadline. Agent runs can take several model turns.
const DefaultInvokeTimeout = 300 * time.Second

// maxEventLine caps a single stream line. A model chunk is small; a legacy
// single-object response can carry a whole answer.
const maxEventLine = 1 << 20

// InvokeOptions customizes Invoke.
type InvokeOptions struct {
	// HTTPClient used for the request. Nil means a fresh client.
	HTTPClient *http.Client

	// SessionID is sent with the request. Empty means a new UUID.
	SessionID string
}

// Invoke POSTs a prompt to a runtime's /invocations endpoint and feeds each
// decoded stream event to handler, in order, until the stream ends or
// handler returns an error. A handler error stops the read and is returned
// as-is.
func Invoke(ctx context.Context, url, prompt string, handler func(Event) error) error {
	return InvokeWithOptions(ctx, url, prompt, InvokeOptions{}, handler)
}

// InvokeWithOptions is Invoke with explicit options.
func InvokeWithOptions(ctx context.Context, url, prompt string, opts InvokeOptions, handler func(Event) error) error {
	if strings.TrimSpace(prompt) == "" {
		return fmt.Errorf("prompt is required")
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultInvokeTimeout)
		defer cancel()
	}

	body, err := json.Marshal(map[string]string{
		"prompt":     prompt,
		"session_id": sessionID,
	})
	if err != nil {
		return fmt.Errorf("encode invocation request: %w", err)
	}

	endpoint := strings.TrimRight(url, "/") + "/invocations"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build invocation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("invocation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("runtime returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), maxEventLine)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		ev, err := decodeEvent(line)
		if err != nil {
			return fmt.Errorf("decode stream event: %w", err)
		}
		if err := handler(ev); err != nil {
			return err
		}
		if ev.Type == EventComplete {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read invocation stream: %w", err)
	}
	return nil
}
