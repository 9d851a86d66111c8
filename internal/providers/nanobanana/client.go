package nanobanana

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/feelkraft/comic-api/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("nanobanana: api key is required")

// ErrUnavailable marks transport-level or non-2xx failures. Retrying is the
// caller's decision; the client itself never retries.
var ErrUnavailable = errors.New("nanobanana: provider unavailable")

// ErrRejected marks an application-level rejection inside a 2xx response
// envelope.
var ErrRejected = errors.New("nanobanana: provider rejected request")

// ErrPollTimeout is returned by PollUntilTerminal when the attempt budget is
// exhausted while the task is still waiting.
var ErrPollTimeout = errors.New("nanobanana: poll timeout")

// TaskError reports a provider-declared task failure. It is terminal and must
// not be retried.
type TaskError struct {
	TaskID string
	Code   string
	Detail string
}

func (e *TaskError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("nanobanana: task %s failed: %s (%s)", e.TaskID, e.Detail, e.Code)
	}
	return fmt.Sprintf("nanobanana: task %s failed: %s", e.TaskID, e.Detail)
}

// TaskState mirrors the provider task state enum.
type TaskState string

const (
	StateWaiting TaskState = "waiting"
	StateSuccess TaskState = "success"
	StateFail    TaskState = "fail"
)

// Options configures the NanoBanana client.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	CallbackURL    string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the NanoBanana asynchronous job API.
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	callbackURL string
	httpClient  *http.Client
	logger      *infra.Logger
}

// TaskRequest captures the inputs for one page generation task.
type TaskRequest struct {
	Prompt       string
	ImageURLs    []string
	AspectRatio  string
	Resolution   string
	OutputFormat string
}

// TaskStatus is the normalized status of a provider task.
type TaskStatus struct {
	TaskID     string
	State      TaskState
	ResultURLs []string
	FailCode   string
	FailMsg    string
	CostTimeMS *int64
}

type createTaskRequest struct {
	Model       string          `json:"model"`
	Input       createTaskInput `json:"input"`
	CallBackURL string          `json:"callBackUrl,omitempty"`
}

type createTaskInput struct {
	Prompt       string   `json:"prompt"`
	ImageInput   []string `json:"image_input"`
	AspectRatio  string   `json:"aspect_ratio"`
	Resolution   string   `json:"resolution"`
	OutputFormat string   `json:"output_format"`
}

type createTaskResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		TaskID string `json:"taskId"`
	} `json:"data"`
}

type recordInfoResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		TaskID     string  `json:"taskId"`
		State      string  `json:"state"`
		ResultJSON *string `json:"resultJson"`
		FailCode   *string `json:"failCode"`
		FailMsg    *string `json:"failMsg"`
		CostTime   *int64  `json:"costTime"`
	} `json:"data"`
}

type resultPayload struct {
	ResultURLs []string `json:"resultUrls"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.kie.ai/api/v1/jobs"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "nano-banana-pro"
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiKey:      strings.TrimSpace(opts.APIKey),
		baseURL:     baseURL,
		model:       model,
		callbackURL: strings.TrimSpace(opts.CallbackURL),
		httpClient:  httpClient,
		logger:      logger,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// CreateTask submits one generation request and returns the provider task id.
// No retries happen at this layer.
func (c *Client) CreateTask(ctx context.Context, req TaskRequest) (string, error) {
	if !c.HasCredentials() {
		return "", ErrMissingAPIKey
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return "", errors.New("nanobanana: prompt is required")
	}
	payload := createTaskRequest{
		Model: c.model,
		Input: createTaskInput{
			Prompt:       prompt,
			ImageInput:   req.ImageURLs,
			AspectRatio:  defaultString(req.AspectRatio, "3:4"),
			Resolution:   defaultString(req.Resolution, "2K"),
			OutputFormat: defaultString(req.OutputFormat, "png"),
		},
		CallBackURL: c.callbackURL,
	}
	if payload.Input.ImageInput == nil {
		payload.Input.ImageInput = []string{}
	}

	var decoded createTaskResponse
	if err := c.post(ctx, "/createTask", payload, &decoded); err != nil {
		return "", err
	}
	if decoded.Code != 200 {
		return "", fmt.Errorf("%w: %s", ErrRejected, decoded.Msg)
	}
	if decoded.Data.TaskID == "" {
		return "", fmt.Errorf("%w: empty task id", ErrRejected)
	}
	c.logger.Info().Str("task_id", decoded.Data.TaskID).Msg("nanobanana: task created")
	return decoded.Data.TaskID, nil
}

// FetchStatus reads the current state of a task. The call is a pure read and
// never mutates provider-side state.
func (c *Client) FetchStatus(ctx context.Context, taskID string) (*TaskStatus, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	endpoint := c.baseURL + "/recordInfo?taskId=" + url.QueryEscape(taskID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("nanobanana: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var decoded recordInfoResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if decoded.Code != 200 {
		return nil, fmt.Errorf("%w: %s", ErrRejected, decoded.Msg)
	}
	return statusFromRecord(decoded)
}

func statusFromRecord(decoded recordInfoResponse) (*TaskStatus, error) {
	status := &TaskStatus{
		TaskID:     decoded.Data.TaskID,
		State:      TaskState(decoded.Data.State),
		CostTimeMS: decoded.Data.CostTime,
	}
	if decoded.Data.FailCode != nil {
		status.FailCode = *decoded.Data.FailCode
	}
	if decoded.Data.FailMsg != nil {
		status.FailMsg = *decoded.Data.FailMsg
	}
	if decoded.Data.State == string(StateSuccess) && decoded.Data.ResultJSON != nil {
		var result resultPayload
		if err := json.Unmarshal([]byte(*decoded.Data.ResultJSON), &result); err != nil {
			return nil, fmt.Errorf("%w: decode result payload: %v", ErrRejected, err)
		}
		status.ResultURLs = result.ResultURLs
	}
	return status, nil
}

// ParseCallback decodes a completion webhook body. The provider posts the
// same envelope it serves from recordInfo, so a parsed callback and a polled
// status are interchangeable downstream.
func ParseCallback(body []byte) (*TaskStatus, error) {
	var decoded recordInfoResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("%w: decode callback: %v", ErrRejected, err)
	}
	if decoded.Data.TaskID == "" {
		return nil, fmt.Errorf("%w: callback missing taskId", ErrRejected)
	}
	return statusFromRecord(decoded)
}

// PollUntilTerminal polls FetchStatus with a fixed delay until the task leaves
// the waiting state or the attempt budget runs out. Transient fetch failures
// consume an attempt instead of aborting; the webhook path covers a task that
// completes while this caller cannot reach the provider. The call holds no
// locks and can span minutes of wall-clock time.
func (c *Client) PollUntilTerminal(ctx context.Context, taskID string, maxAttempts int, interval time.Duration) (*TaskStatus, error) {
	if maxAttempts <= 0 {
		maxAttempts = 60
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(interval):
			}
		}
		status, err := c.FetchStatus(ctx, taskID)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			lastErr = err
			c.logger.Warn().Err(err).Str("task_id", taskID).Int("attempt", attempt+1).Msg("nanobanana: status fetch failed")
			continue
		}
		switch status.State {
		case StateSuccess:
			c.logger.Info().Str("task_id", taskID).Msg("nanobanana: task completed")
			return status, nil
		case StateFail:
			return nil, &TaskError{TaskID: taskID, Code: status.FailCode, Detail: status.FailMsg}
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: last error: %v", ErrPollTimeout, lastErr)
	}
	return nil, ErrPollTimeout
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("nanobanana: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("nanobanana: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return nil
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
