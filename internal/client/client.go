package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"hostexec/internal/config"
	"hostexec/internal/types"
)

const (
	defaultRequestTimeout = 10 * time.Second
	// execTimeoutSlack covers daemon-side overhead on top of a command's own
	// timeout.
	execTimeoutSlack = 10 * time.Second
)

type Client struct {
	baseURL   string
	tokenPath string
	token     string
	http      *http.Client
}

// New builds a client for the daemon address in the core config.
func New() (*Client, error) {
	tokenPath, err := config.TokenPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadCoreConfig()
	if err != nil {
		cfg = config.DefaultCoreConfig()
	}
	c := &Client{
		baseURL:   cfg.DaemonBaseURL(),
		tokenPath: tokenPath,
		http: &http.Client{
			Timeout: defaultRequestTimeout,
		},
	}
	_ = c.loadToken()
	return c, nil
}

func NewWithBaseURL(baseURL, token string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		tokenPath: "",
		token:     token,
		http: &http.Client{
			Timeout: defaultRequestTimeout,
		},
	}
}

func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.doJSON(ctx, http.MethodGet, "/health", nil, false, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Exec runs a command to completion on the daemon. The HTTP timeout follows
// the command's own timeout; without one the request is bounded only by ctx.
func (c *Client) Exec(ctx context.Context, req ExecRequest) (*types.CommandOutcome, error) {
	return c.exec(ctx, "/v1/exec", req)
}

// ExecAsync uses the cancellable path: cancelling ctx kills the command on the
// daemon.
func (c *Client) ExecAsync(ctx context.Context, req ExecRequest) (*types.CommandOutcome, error) {
	return c.exec(ctx, "/v1/exec/async", req)
}

func (c *Client) exec(ctx context.Context, path string, req ExecRequest) (*types.CommandOutcome, error) {
	var outcome types.CommandOutcome
	if err := c.doJSONWithTimeout(ctx, http.MethodPost, path, req, true, &outcome, commandTimeout(req.Timeout)); err != nil {
		return nil, err
	}
	return &outcome, nil
}

func commandTimeout(seconds float64) time.Duration {
	if seconds <= 0 {
		return noTimeout
	}
	return time.Duration(seconds*float64(time.Second)) + execTimeoutSlack
}

func (c *Client) StartJob(ctx context.Context, req ExecRequest) (*types.JobSummary, error) {
	var job types.JobSummary
	if err := c.doJSON(ctx, http.MethodPost, "/v1/jobs", req, true, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *Client) ListJobs(ctx context.Context) ([]types.JobSummary, error) {
	var resp JobsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/jobs", nil, true, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

func (c *Client) TerminateJob(ctx context.Context, id int) (bool, error) {
	var resp TerminateJobResponse
	path := fmt.Sprintf("/v1/jobs/%d/terminate", id)
	if err := c.doJSON(ctx, http.MethodPost, path, nil, true, &resp); err != nil {
		return false, err
	}
	return resp.Terminated, nil
}

// History returns the last limit entries; limit <= 0 uses the daemon default.
func (c *Client) History(ctx context.Context, limit int) ([]types.HistoryEntry, error) {
	path := "/v1/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp HistoryResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, true, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

func (c *Client) SearchHistory(ctx context.Context, query string) ([]types.HistoryEntry, error) {
	var resp HistoryResponse
	path := "/v1/history?q=" + url.QueryEscape(query)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, true, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

func (c *Client) HistoryEntry(ctx context.Context, id uint64) (*types.HistoryEntry, error) {
	var entry types.HistoryEntry
	path := fmt.Sprintf("/v1/history/%d", id)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, true, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (c *Client) Rerun(ctx context.Context, id uint64) (*types.CommandOutcome, error) {
	var outcome types.CommandOutcome
	path := fmt.Sprintf("/v1/history/%d/rerun", id)
	if err := c.doJSONWithTimeout(ctx, http.MethodPost, path, nil, true, &outcome, noTimeout); err != nil {
		return nil, err
	}
	return &outcome, nil
}

func (c *Client) SessionStatus(ctx context.Context) (*types.ShellStatus, error) {
	var status types.ShellStatus
	if err := c.doJSON(ctx, http.MethodGet, "/v1/session", nil, true, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) StartSession(ctx context.Context) (*types.ShellStatus, error) {
	return c.sessionAction(ctx, "start")
}

func (c *Client) StopSession(ctx context.Context) (*types.ShellStatus, error) {
	return c.sessionAction(ctx, "stop")
}

func (c *Client) RestartSession(ctx context.Context) (*types.ShellStatus, error) {
	return c.sessionAction(ctx, "restart")
}

func (c *Client) sessionAction(ctx context.Context, action string) (*types.ShellStatus, error) {
	var status types.ShellStatus
	if err := c.doJSON(ctx, http.MethodPost, "/v1/session/"+action, nil, true, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// RunInSession waits as long as the daemon's session timeout allows.
func (c *Client) RunInSession(ctx context.Context, command string) (*types.CommandOutcome, error) {
	var outcome types.CommandOutcome
	req := SessionRunRequest{Command: command}
	if err := c.doJSONWithTimeout(ctx, http.MethodPost, "/v1/session/run", req, true, &outcome, noTimeout); err != nil {
		return nil, err
	}
	return &outcome, nil
}

func (c *Client) Environment(ctx context.Context) (map[string]string, error) {
	var resp EnvResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/env", nil, true, &resp); err != nil {
		return nil, err
	}
	return resp.Env, nil
}

func (c *Client) WorkingDirectory(ctx context.Context) (string, error) {
	var resp CwdResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/cwd", nil, true, &resp); err != nil {
		return "", err
	}
	return resp.Cwd, nil
}

func (c *Client) Which(ctx context.Context, command string) (*WhichResponse, error) {
	var resp WhichResponse
	path := "/v1/which?command=" + url.QueryEscape(command)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, true, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) MonitorProcess(ctx context.Context, pid int) (*types.CommandOutcome, error) {
	var outcome types.CommandOutcome
	path := "/v1/processes/" + strconv.Itoa(pid)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, true, &outcome); err != nil {
		return nil, err
	}
	return &outcome, nil
}

func (c *Client) EnsureDaemon(ctx context.Context) error {
	return c.ensureDaemon(ctx, "", false)
}

func (c *Client) EnsureDaemonVersion(ctx context.Context, expectedVersion string, restart bool) error {
	return c.ensureDaemon(ctx, expectedVersion, restart)
}

func (c *Client) ShutdownDaemon(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/v1/shutdown", nil, true, nil)
}

func (c *Client) ensureDaemon(ctx context.Context, expectedVersion string, restart bool) error {
	resp, err := c.Health(ctx)
	if err == nil && resp.OK {
		if expectedVersion == "" || resp.Version == expectedVersion {
			return nil
		}
		if !restart {
			return fmt.Errorf("daemon version mismatch: %s (expected %s)", resp.Version, expectedVersion)
		}
		if err := c.ShutdownDaemon(ctx); err != nil {
			apiErr := asAPIError(err)
			if apiErr == nil || apiErr.StatusCode != http.StatusNotFound {
				return err
			}
			if resp.PID <= 0 {
				return err
			}
			if killErr := killProcess(resp.PID); killErr != nil {
				return fmt.Errorf("failed to stop stale daemon (pid %d): %w", resp.PID, killErr)
			}
		}
		shutdownDeadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(shutdownDeadline) {
			if _, err := c.Health(ctx); err != nil {
				break
			}
			time.Sleep(100 * time.Millisecond)
		}
	}
	if err := startDaemon(); err != nil {
		return err
	}
	deadline := time.Now().Add(4 * time.Second)
	var lastErr error
	for time.Now().Before(deadline) {
		resp, err := c.Health(ctx)
		if err == nil && resp.OK {
			if expectedVersion == "" || resp.Version == expectedVersion {
				_ = c.loadToken()
				return nil
			}
			lastErr = fmt.Errorf("daemon version mismatch: %s (expected %s)", resp.Version, expectedVersion)
		} else {
			lastErr = err
		}
		time.Sleep(150 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = errors.New("daemon not healthy after start")
	}
	return lastErr
}

// noTimeout asks doJSONWithTimeout for a client without a deadline.
const noTimeout time.Duration = -1

func (c *Client) doJSON(ctx context.Context, method, path string, body any, requireAuth bool, out any) error {
	return c.doJSONWithClient(ctx, method, path, body, requireAuth, out, c.http)
}

func (c *Client) doJSONWithTimeout(ctx context.Context, method, path string, body any, requireAuth bool, out any, timeout time.Duration) error {
	client := c.http
	switch {
	case timeout == noTimeout:
		client = &http.Client{Transport: c.transport()}
	case timeout > 0:
		client = &http.Client{
			Timeout:   timeout,
			Transport: c.transport(),
		}
	}
	return c.doJSONWithClient(ctx, method, path, body, requireAuth, out, client)
}

func (c *Client) transport() http.RoundTripper {
	if c.http == nil {
		return nil
	}
	return c.http.Transport
}

func (c *Client) doJSONWithClient(ctx context.Context, method, path string, body any, requireAuth bool, out any, httpClient *http.Client) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if requireAuth {
		if err := c.ensureToken(); err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) ensureToken() error {
	if strings.TrimSpace(c.token) == "" {
		if err := c.loadToken(); err != nil {
			return err
		}
	}
	if strings.TrimSpace(c.token) == "" {
		return errors.New("token not found; is the daemon running?")
	}
	return nil
}

func (c *Client) loadToken() error {
	if c.tokenPath == "" {
		return nil
	}
	data, err := os.ReadFile(c.tokenPath)
	if err != nil {
		if os.IsNotExist(err) {
			c.token = ""
			return nil
		}
		return err
	}
	c.token = strings.TrimSpace(string(data))
	return nil
}

func decodeAPIError(resp *http.Response) error {
	var payload errorPayload
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Message:    payload.Error,
		Kind:       payload.Kind,
		Stdout:     payload.Stdout,
		Stderr:     payload.Stderr,
		Partial:    payload.Partial,
	}
	if apiErr.Message == "" {
		apiErr.Message = resp.Status
	}
	return apiErr
}

// APIError is a non-2xx daemon response. Timed out commands carry the output
// collected before the deadline in Stdout and Stderr.
type APIError struct {
	StatusCode int
	Message    string
	Kind       string
	Stdout     string
	Stderr     string
	Partial    bool
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
}

func (e *APIError) TimedOut() bool {
	return e != nil && (e.Kind == "timeout" || e.StatusCode == http.StatusGatewayTimeout)
}

func asAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return nil
}

var (
	killProcess = terminateProcess
	startDaemon = StartBackgroundDaemon
)

func terminateProcess(pid int) error {
	if pid <= 0 {
		return errors.New("invalid pid")
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if runtime.GOOS == "windows" {
		return proc.Kill()
	}
	return proc.Signal(syscall.SIGTERM)
}
