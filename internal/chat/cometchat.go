package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	usersPageSize     = 100
	maxErrorBodyBytes = 4 << 10
	errUIDExists      = "ERR_UID_ALREADY_EXISTS"
	errUIDNotFound    = "ERR_UID_NOT_FOUND"
)

// Observer receives one call per finished chat request.
type Observer interface {
	ObserveChatCall(op, outcome string, elapsed time.Duration)
}

// CometChatConfig configures the REST client.
type CometChatConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// CometChatClient implements Transport over the CometChat REST API v3.
type CometChatClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
	observer   Observer
}

// NewCometChatClient builds a client. Each attempt is bounded by cfg.Timeout.
func NewCometChatClient(cfg CometChatConfig, logger *zap.Logger, observer Observer) *CometChatClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CometChatClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(zap.String("component", "cometchat")),
		observer:   observer,
	}
}

type cometUser struct {
	UID      string         `json:"uid"`
	Name     string         `json:"name"`
	Role     string         `json:"role,omitempty"`
	Status   string         `json:"status,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (u cometUser) toUser() User {
	user := User{UID: u.UID, Name: u.Name, Role: u.Role, Status: u.Status}
	if user.Status == "" {
		user.Status = StatusOffline
	}
	for k, v := range u.Metadata {
		if s, ok := v.(string); ok {
			if user.Metadata == nil {
				user.Metadata = make(map[string]string)
			}
			user.Metadata[k] = s
		}
	}
	return user
}

type cometMessage struct {
	ID           json.RawMessage `json:"id"`
	Sender       string          `json:"sender"`
	Receiver     string          `json:"receiver"`
	ReceiverType string          `json:"receiverType"`
	Category     string          `json:"category"`
	Type         string          `json:"type"`
	SentAt       int64           `json:"sentAt"`
	Data         struct {
		Text string `json:"text"`
	} `json:"data"`
}

func (m cometMessage) toMessage() Message {
	return Message{
		ID:          strings.Trim(string(m.ID), `"`),
		SenderUID:   m.Sender,
		ReceiverUID: m.Receiver,
		Text:        m.Data.Text,
		SentAt:      time.Unix(m.SentAt, 0).UTC(),
	}
}

type cometError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// apiError is the decoded failure body of a non-2xx response.
type apiError struct {
	status  int
	code    string
	message string
}

func (e *apiError) Error() string {
	if e.code != "" {
		return fmt.Sprintf("%s: %s", e.code, e.message)
	}
	return e.message
}

// CreateUser implements Transport.
func (c *CometChatClient) CreateUser(ctx context.Context, user User) error {
	body := map[string]any{"uid": user.UID, "name": user.Name}
	if user.Role != "" {
		body["role"] = user.Role
	}
	if len(user.Metadata) > 0 {
		body["metadata"] = user.Metadata
	}
	err := c.do(ctx, "create_user", http.MethodPost, "/users", nil, "", body, nil)
	var apiErr *apiError
	if errors.As(err, &apiErr) && apiErr.code == errUIDExists {
		return nil
	}
	return c.wrap("create_user", err)
}

// GetUser implements Transport.
func (c *CometChatClient) GetUser(ctx context.Context, uid string) (*User, error) {
	var out struct {
		Data cometUser `json:"data"`
	}
	if err := c.do(ctx, "get_user", http.MethodGet, "/users/"+url.PathEscape(uid), nil, "", nil, &out); err != nil {
		return nil, c.wrap("get_user", err)
	}
	user := out.Data.toUser()
	return &user, nil
}

// ListUsers implements Transport, following pagination to the end.
func (c *CometChatClient) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	for page := 1; ; page++ {
		var out struct {
			Data []cometUser `json:"data"`
			Meta struct {
				Pagination struct {
					TotalPages  int `json:"total_pages"`
					CurrentPage int `json:"current_page"`
				} `json:"pagination"`
			} `json:"meta"`
		}
		q := url.Values{}
		q.Set("perPage", strconv.Itoa(usersPageSize))
		q.Set("page", strconv.Itoa(page))
		if err := c.do(ctx, "list_users", http.MethodGet, "/users", q, "", nil, &out); err != nil {
			return nil, c.wrap("list_users", err)
		}
		for _, u := range out.Data {
			users = append(users, u.toUser())
		}
		if len(out.Data) == 0 || page >= out.Meta.Pagination.TotalPages {
			return users, nil
		}
	}
}

// CreateAuthToken implements Transport.
func (c *CometChatClient) CreateAuthToken(ctx context.Context, uid string) (string, error) {
	var out struct {
		Data struct {
			UID       string `json:"uid"`
			AuthToken string `json:"authToken"`
		} `json:"data"`
	}
	path := "/users/" + url.PathEscape(uid) + "/auth_tokens"
	if err := c.do(ctx, "create_auth_token", http.MethodPost, path, nil, "", map[string]any{}, &out); err != nil {
		return "", c.wrap("create_auth_token", err)
	}
	if out.Data.AuthToken == "" {
		return "", &TransportError{Op: "create_auth_token", Err: errors.New("empty auth token in response")}
	}
	return out.Data.AuthToken, nil
}

// SendMessage implements Transport. Sends are never retried.
func (c *CometChatClient) SendMessage(ctx context.Context, senderUID, receiverUID, text string) (*Message, error) {
	body := map[string]any{
		"receiver":     receiverUID,
		"receiverType": "user",
		"category":     "message",
		"type":         "text",
		"data":         map[string]any{"text": text},
	}
	var out struct {
		Data cometMessage `json:"data"`
	}
	if err := c.do(ctx, "send_message", http.MethodPost, "/messages", nil, senderUID, body, &out); err != nil {
		return nil, c.wrap("send_message", err)
	}
	msg := out.Data.toMessage()
	return &msg, nil
}

// ListMessages implements Transport.
func (c *CometChatClient) ListMessages(ctx context.Context, ownerUID, peerUID string, query MessageQuery) ([]Message, error) {
	query = query.Normalize()
	q := url.Values{}
	q.Set("limit", strconv.Itoa(query.Limit))
	q.Set("types", "text")
	if !query.Before.IsZero() {
		q.Set("sentAt", strconv.FormatInt(query.Before.Unix(), 10))
		q.Set("affix", "prepend")
	}
	var out struct {
		Data []cometMessage `json:"data"`
	}
	path := "/users/" + url.PathEscape(peerUID) + "/messages"
	if err := c.do(ctx, "list_messages", http.MethodGet, path, q, ownerUID, nil, &out); err != nil {
		return nil, c.wrap("list_messages", err)
	}

	messages := make([]Message, 0, len(out.Data))
	for _, m := range out.Data {
		messages = append(messages, m.toMessage())
	}
	sort.SliceStable(messages, func(i, j int) bool { return messages[i].SentAt.After(messages[j].SentAt) })
	if len(messages) > query.Limit {
		messages = messages[:query.Limit]
	}
	return messages, nil
}

func (c *CometChatClient) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		if apiErr.status == http.StatusNotFound || apiErr.code == errUIDNotFound {
			return ErrUserNotFound
		}
		return &TransportError{Op: op, Status: apiErr.status, Err: apiErr}
	}
	var tErr *TransportError
	if errors.As(err, &tErr) {
		return err
	}
	return &TransportError{Op: op, Err: err}
}

// do performs one request. GETs get exactly one retry on network errors,
// 429 and 5xx; other methods are attempted once.
func (c *CometChatClient) do(ctx context.Context, op, method, path string, query url.Values, onBehalfOf string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	attempts := 1
	if method == http.MethodGet {
		attempts = 2
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		start := time.Now()
		retryable, err := c.attempt(ctx, method, path, query, onBehalfOf, payload, out)
		c.observe(op, err, time.Since(start))
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable || ctx.Err() != nil {
			break
		}
		if attempt < attempts {
			c.logger.Warn("retrying chat request", zap.String("op", op), zap.Error(err))
		}
	}
	return lastErr
}

func (c *CometChatClient) attempt(ctx context.Context, method, path string, query url.Values, onBehalfOf string, payload []byte, out any) (bool, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return false, err
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if onBehalfOf != "" {
		req.Header.Set("onBehalfOf", onBehalfOf)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		apiErr := &apiError{status: resp.StatusCode, message: strings.TrimSpace(string(raw))}
		var decoded cometError
		if json.Unmarshal(raw, &decoded) == nil && decoded.Error.Code != "" {
			apiErr.code = decoded.Error.Code
			apiErr.message = decoded.Error.Message
		}
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError
		return retryable, apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return false, nil
}

func (c *CometChatClient) observe(op string, err error, elapsed time.Duration) {
	if c.observer == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.status < http.StatusInternalServerError {
			outcome = "rejected"
		}
	}
	c.observer.ObserveChatCall(op, outcome, elapsed)
}
