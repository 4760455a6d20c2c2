package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// FlowResponse — flow из API.
type FlowResponse struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Number           string `json:"number"`
	IsActive         bool   `json:"is_active"`
	PublishedVersion int    `json:"published_version"`
	CreatedAt        string `json:"created_at"`
}

// FlowVersionResponse — версия flow из API.
type FlowVersionResponse struct {
	FlowID    string         `json:"flow_id"`
	Version   int            `json:"version"`
	Graph     map[string]any `json:"graph,omitempty"`
	CreatedAt string         `json:"created_at"`
}

// AgentResponse — оператор из API.
type AgentResponse struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	MaxConcurrent int      `json:"max_concurrent"`
	Skills        []string `json:"skills,omitempty"`
	Weight        int      `json:"weight"`
}

// QueueResponse — очередь из API.
type QueueResponse struct {
	Name                string `json:"name"`
	MaxSize             int    `json:"max_size"`
	MaxWaitSec          int    `json:"max_wait_sec"`
	Strategy            string `json:"strategy"`
	HoldAudioRef        string `json:"hold_audio_ref,omitempty"`
	AnnounceAudioRef    string `json:"announce_audio_ref,omitempty"`
	AnnounceIntervalSec int    `json:"announce_interval_sec,omitempty"`
}

// CallRecordResponse — запись журнала звонков из API.
type CallRecordResponse struct {
	CallID     string `json:"call_id"`
	Caller     string `json:"caller"`
	Called     string `json:"called"`
	FlowID     string `json:"flow_id"`
	Status     string `json:"status"`
	QueueName  string `json:"queue_name,omitempty"`
	AgentID    string `json:"agent_id,omitempty"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
}

// --- Request types ---

// UpdateFlowRequest — обновление flow.
type UpdateFlowRequest struct {
	Name     *string `json:"name,omitempty"`
	Number   *string `json:"number,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// CreateAgentRequest — регистрация оператора.
type CreateAgentRequest struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	MaxConcurrent int      `json:"max_concurrent"`
	Skills        []string `json:"skills,omitempty"`
	Weight        int      `json:"weight"`
}

// CreateQueueRequest — создание очереди.
type CreateQueueRequest struct {
	Name                string `json:"name"`
	MaxSize             int    `json:"max_size"`
	MaxWaitSec          int    `json:"max_wait_sec"`
	Strategy            string `json:"strategy"`
	HoldAudioRef        string `json:"hold_audio_ref,omitempty"`
	AnnounceAudioRef    string `json:"announce_audio_ref,omitempty"`
	AnnounceIntervalSec int    `json:"announce_interval_sec,omitempty"`
}

// TelephonyEventRequest — событие телефонии (симуляция звонка).
type TelephonyEventRequest struct {
	CallID string `json:"call_id"`
	Type   string `json:"type"`
	Digits string `json:"digits,omitempty"`
	Caller string `json:"caller,omitempty"`
	Called string `json:"called,omitempty"`
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

// --- Client ---

// Client — HTTP-клиент для Kommutator API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Flows ---

// ListFlows возвращает все flows.
func (c *Client) ListFlows() ([]FlowResponse, error) {
	var flows []FlowResponse
	err := c.list("/api/v1/flows", nil, &flows)
	return flows, err
}

// CreateFlow создаёт новый flow.
func (c *Client) CreateFlow(name, number string) (*FlowResponse, error) {
	body := map[string]string{"name": name, "number": number}
	var fl FlowResponse
	err := c.post("/api/v1/flows", body, &fl)
	return &fl, err
}

// GetFlow возвращает flow по ID.
func (c *Client) GetFlow(id string) (*FlowResponse, error) {
	var fl FlowResponse
	err := c.get("/api/v1/flows/"+id, &fl)
	return &fl, err
}

// UpdateFlow обновляет flow.
func (c *Client) UpdateFlow(id string, req UpdateFlowRequest) (*FlowResponse, error) {
	var fl FlowResponse
	err := c.put("/api/v1/flows/"+id, req, &fl)
	return &fl, err
}

// DeleteFlow удаляет flow.
func (c *Client) DeleteFlow(id string) error {
	return c.delete("/api/v1/flows/" + id)
}

// ListVersions возвращает версии flow.
func (c *Client) ListVersions(flowID string) ([]FlowVersionResponse, error) {
	var versions []FlowVersionResponse
	err := c.list("/api/v1/flows/"+flowID+"/versions", nil, &versions)
	return versions, err
}

// CreateVersion создаёт новую версию графа flow.
func (c *Client) CreateVersion(flowID string, graph json.RawMessage) (*FlowVersionResponse, error) {
	body := map[string]json.RawMessage{"graph": graph}
	var version FlowVersionResponse
	err := c.post("/api/v1/flows/"+flowID+"/versions", body, &version)
	return &version, err
}

// PublishVersion публикует версию flow.
func (c *Client) PublishVersion(flowID string, version int) (*FlowResponse, error) {
	var fl FlowResponse
	err := c.post(fmt.Sprintf("/api/v1/flows/%s/versions/%d/publish", flowID, version), nil, &fl)
	return &fl, err
}

// --- Agents ---

// ListAgents возвращает всех операторов.
func (c *Client) ListAgents() ([]AgentResponse, error) {
	var agents []AgentResponse
	err := c.list("/api/v1/agents", nil, &agents)
	return agents, err
}

// CreateAgent регистрирует оператора.
func (c *Client) CreateAgent(req CreateAgentRequest) (*AgentResponse, error) {
	var agent AgentResponse
	err := c.post("/api/v1/agents", req, &agent)
	return &agent, err
}

// GetAgent возвращает оператора по ID.
func (c *Client) GetAgent(id string) (*AgentResponse, error) {
	var agent AgentResponse
	err := c.get("/api/v1/agents/"+id, &agent)
	return &agent, err
}

// DeleteAgent удаляет оператора.
func (c *Client) DeleteAgent(id string) error {
	return c.delete("/api/v1/agents/" + id)
}

// SetAgentStatus меняет статус оператора.
func (c *Client) SetAgentStatus(id, status string) error {
	body := map[string]string{"status": status}
	return c.post("/api/v1/agents/"+id+"/status", body, nil)
}

// --- Queues ---

// ListQueues возвращает все очереди.
func (c *Client) ListQueues() ([]QueueResponse, error) {
	var queues []QueueResponse
	err := c.list("/api/v1/queues", nil, &queues)
	return queues, err
}

// CreateQueue создаёт очередь.
func (c *Client) CreateQueue(req CreateQueueRequest) (*QueueResponse, error) {
	var queue QueueResponse
	err := c.post("/api/v1/queues", req, &queue)
	return &queue, err
}

// DeleteQueue удаляет очередь.
func (c *Client) DeleteQueue(name string) error {
	return c.delete("/api/v1/queues/" + name)
}

// --- Calls ---

// ListRecentCalls возвращает последние завершённые звонки.
func (c *Client) ListRecentCalls(limit int) ([]CallRecordResponse, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}

	var records []CallRecordResponse
	err := c.list("/api/v1/calls", params, &records)
	return records, err
}

// SendTelephonyEvent отправляет событие телефонии (симуляция).
func (c *Client) SendTelephonyEvent(req TelephonyEventRequest) error {
	return c.post("/api/v1/telephony/events", req, nil)
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
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

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
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
