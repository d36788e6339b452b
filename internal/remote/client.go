package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/unipilot/internal/entities"
)

const defaultClientTimeout = 15 * time.Second

var (
	errMissingBaseURL = errors.New("remote: base url is required")
	// ErrMissingID reports an update or delete of an entity without an id.
	ErrMissingID = errors.New("remote: entity has no id")
)

// StatusError is a non-2xx backend response.
type StatusError struct {
	StatusCode int
	Code       string
}

func (e *StatusError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("remote: status %d", e.StatusCode)
	}
	return fmt.Sprintf("remote: status %d: %s", e.StatusCode, e.Code)
}

// TokenSource supplies the bearer token for each request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed bearer token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}

// ClientConfig configures the HTTP client.
type ClientConfig struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Tokens     TokenSource
	Logger     *zap.Logger
}

// Client talks to the backend's JSON API.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	tokens  TokenSource
	logger  *zap.Logger
}

// NewClient validates cfg and builds a Client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errMissingBaseURL
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("remote: parse base url: %w", err)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultClientTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{baseURL: base, http: httpClient, tokens: cfg.Tokens, logger: logger}, nil
}

// Services returns the per-kind services backed by c.
func (c *Client) Services() Services {
	return Services{
		Courses:     resource[entities.Course]{client: c, path: "/courses"},
		Assignments: resource[entities.Assignment]{client: c, path: "/assignments"},
		Documents:   resource[entities.Document]{client: c, path: "/documents"},
		Notes:       resource[entities.Note]{client: c, path: "/notes"},
		Storage:     storageResource{client: c},
	}
}

type listPayload[E any] struct {
	Items []E `json:"items"`
}

type updatePayload struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

type errorPayload struct {
	Error string `json:"error"`
}

type resource[E entities.Identified] struct {
	client *Client
	path   string
}

func (r resource[E]) List(ctx context.Context, filter entities.Filter) ([]E, error) {
	query := url.Values{}
	if filter.AssignmentID != 0 {
		query.Set("assignment_id", strconv.FormatInt(filter.AssignmentID, 10))
	}
	if filter.DocumentType != "" {
		query.Set("type", string(filter.DocumentType))
	}
	var payload listPayload[E]
	if err := r.client.do(ctx, http.MethodGet, r.path, query, nil, &payload); err != nil {
		return nil, err
	}
	if payload.Items == nil {
		payload.Items = []E{}
	}
	return payload.Items, nil
}

func (r resource[E]) Create(ctx context.Context, entity E) (E, error) {
	var created E
	if err := r.client.do(ctx, http.MethodPost, r.path, nil, entity, &created); err != nil {
		var zero E
		return zero, err
	}
	return created, nil
}

func (r resource[E]) Update(ctx context.Context, entity E, field, value string) error {
	path, err := r.entityPath(entity)
	if err != nil {
		return err
	}
	return r.client.do(ctx, http.MethodPatch, path, nil, updatePayload{Field: field, Value: value}, nil)
}

func (r resource[E]) Delete(ctx context.Context, entity E) error {
	path, err := r.entityPath(entity)
	if err != nil {
		return err
	}
	return r.client.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

func (r resource[E]) entityPath(entity E) (string, error) {
	id := entity.EntityID()
	if id <= 0 {
		return "", ErrMissingID
	}
	return r.path + "/" + strconv.FormatInt(id, 10), nil
}

type storageResource struct {
	client *Client
}

func (s storageResource) Storage(ctx context.Context) (entities.StorageInfo, error) {
	var info entities.StorageInfo
	err := s.client.do(ctx, http.MethodGet, "/storage", nil, nil, &info)
	return info, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}

	var reader io.Reader = http.NoBody
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("remote: encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return fmt.Errorf("remote: build %s %s: %w", method, path, err)
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	request.Header.Set("Accept", "application/json")
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("remote: token: %w", err)
		}
		request.Header.Set("Authorization", "Bearer "+token)
	}

	response, err := c.http.Do(request)
	if err != nil {
		c.logger.Warn("backend request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return fmt.Errorf("remote: %s %s: %w", method, path, err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		var payload errorPayload
		_ = json.NewDecoder(io.LimitReader(response.Body, 1<<16)).Decode(&payload)
		return &StatusError{StatusCode: response.StatusCode, Code: payload.Error}
	}
	if out == nil || response.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		return fmt.Errorf("remote: decode %s %s: %w", method, path, err)
	}
	return nil
}
