package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// RunResponse — run из API.
type RunResponse struct {
	ID         string         `json:"id"`
	UserStory  string         `json:"user_story"`
	Status     string         `json:"status"`
	Outcome    string         `json:"outcome,omitempty"`
	Steps      int            `json:"steps"`
	RetryCount int            `json:"retry_count"`
	Record     map[string]any `json:"record,omitempty"`
	StartedAt  string         `json:"started_at,omitempty"`
	FinishedAt string         `json:"finished_at,omitempty"`
	DurationMS int64          `json:"duration_ms,omitempty"`
	Error      string         `json:"error,omitempty"`
	CreatedAt  string         `json:"created_at"`
}

// SnapshotResponse — снимок run из API.
type SnapshotResponse struct {
	Step      int            `json:"step"`
	NodeID    string         `json:"node_id"`
	Status    string         `json:"status"`
	Changed   []string       `json:"changed"`
	Record    map[string]any `json:"record"`
	CreatedAt string         `json:"created_at"`
}

// ActiveRunResponse — run, выполняющийся в API.
type ActiveRunResponse struct {
	RunID      string `json:"run_id"`
	Steps      int    `json:"steps"`
	NodeID     string `json:"node_id"`
	Status     string `json:"status"`
	RetryCount int    `json:"retry_count"`
}

// NodeResponse — узел pipeline.
type NodeResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TransitionResponse — переход pipeline.
type TransitionResponse struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Decision string `json:"decision,omitempty"`
	Retry    bool   `json:"retry,omitempty"`
}

// PipelineResponse — описание pipeline.
type PipelineResponse struct {
	Entry        string               `json:"entry"`
	MaxSteps     int                  `json:"max_steps"`
	RetryCeiling int                  `json:"retry_ceiling"`
	Nodes        []NodeResponse       `json:"nodes"`
	Transitions  []TransitionResponse `json:"transitions"`
}

// --- Request types ---

// CreateRunRequest — запуск run.
type CreateRunRequest struct {
	UserStory        string `json:"user_story"`
	UseSamplePayload bool   `json:"use_sample_payload,omitempty"`
	SimulateFailures int    `json:"simulate_failures,omitempty"`
	MaxSteps         int    `json:"max_steps,omitempty"`
}

// ListRunsOpts — параметры фильтрации runs.
type ListRunsOpts struct {
	Status string
	Limit  int
	Offset int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// streamLine — строка NDJSON потока POST /api/v1/runs.
// Завершающая строка содержит run и, возможно, ошибку.
type streamLine struct {
	SnapshotResponse
	Run   *RunResponse `json:"run,omitempty"`
	Error string       `json:"error,omitempty"`
}

// maxLineBytes — предел длины строки потока (Record целиком).
const maxLineBytes = 4 << 20

// ErrRunFailed — run завершился ошибкой на стороне API.
var ErrRunFailed = errors.New("run failed")

// ErrStreamTruncated — поток оборвался без завершающей строки.
var ErrStreamTruncated = errors.New("run stream ended without a final line")

// --- Client ---

// Client — HTTP-клиент для Synapse API.
type Client struct {
	baseURL    string
	httpClient *http.Client

	// streamClient без общего таймаута: синхронный run длится,
	// пока работает pipeline. Ограничивается контекстом.
	streamClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		streamClient: &http.Client{},
	}
}

// --- Runs ---

// StartRun запускает run синхронно и вызывает onSnapshot на каждый снимок потока.
// Ошибка run (например, превышение лимита шагов) возвращается вместе с run,
// обёрнутая в ErrRunFailed.
func (c *Client) StartRun(ctx context.Context, req CreateRunRequest, onSnapshot func(SnapshotResponse) error) (*RunResponse, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/runs", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/x-ndjson")

	resp, err := c.streamClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return nil, err
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64<<10), maxLineBytes)

	for scanner.Scan() {
		if len(bytes.TrimSpace(scanner.Bytes())) == 0 {
			continue
		}

		var line streamLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			return nil, fmt.Errorf("failed to decode stream line: %w", err)
		}

		// Завершающая строка: снимков после неё нет
		if line.NodeID == "" {
			if line.Error != "" {
				return line.Run, fmt.Errorf("%w: %s", ErrRunFailed, line.Error)
			}
			return line.Run, nil
		}

		if onSnapshot != nil {
			if err := onSnapshot(line.SnapshotResponse); err != nil {
				return nil, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stream: %w", err)
	}

	return nil, ErrStreamTruncated
}

// EnqueueRun ставит run в очередь.
func (c *Client) EnqueueRun(req CreateRunRequest) (*RunResponse, error) {
	var run RunResponse
	err := c.post("/api/v1/runs?async=true", req, &run)
	return &run, err
}

// ListRuns возвращает список runs с фильтрацией.
func (c *Client) ListRuns(opts ListRunsOpts) ([]RunResponse, error) {
	params := url.Values{}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		params.Set("offset", strconv.Itoa(opts.Offset))
	}

	var runs []RunResponse
	err := c.list("/api/v1/runs", params, &runs)
	return runs, err
}

// ListActiveRuns возвращает runs, выполняющиеся в API.
func (c *Client) ListActiveRuns() ([]ActiveRunResponse, error) {
	var runs []ActiveRunResponse
	err := c.list("/api/v1/runs/active", nil, &runs)
	return runs, err
}

// GetRun возвращает run по ID.
func (c *Client) GetRun(id string) (*RunResponse, error) {
	var run RunResponse
	err := c.get("/api/v1/runs/"+url.PathEscape(id), &run)
	return &run, err
}

// ListSnapshots возвращает снимки run.
func (c *Client) ListSnapshots(runID string) ([]SnapshotResponse, error) {
	var snaps []SnapshotResponse
	err := c.list("/api/v1/runs/"+url.PathEscape(runID)+"/snapshots", nil, &snaps)
	return snaps, err
}

// --- Pipeline ---

// GetPipeline возвращает описание pipeline.
func (c *Client) GetPipeline() (*PipelineResponse, error) {
	var p PipelineResponse
	err := c.get("/api/v1/pipeline", &p)
	return &p, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
