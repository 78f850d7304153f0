// Package graphql is a minimal GraphQL-over-HTTP client for the public lead API.
package graphql

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	commonhttp "lead-wizard/internal/common/http"
	"lead-wizard/internal/common/logger"
)

// Client is the injected backend collaborator. Tests substitute a fake.
type Client interface {
	Query(ctx context.Context, document string, variables map[string]interface{}, out interface{}) error
	Mutate(ctx context.Context, document string, variables map[string]interface{}, out interface{}) error
}

type request struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type response struct {
	Data   json.RawMessage `json:"data"`
	Errors []GQLError      `json:"errors"`
}

// GQLError is one entry of the top-level "errors" array.
type GQLError struct {
	Message string        `json:"message"`
	Path    []interface{} `json:"path,omitempty"`
}

// ResponseError is returned when the server answers with top-level errors and no data.
type ResponseError struct {
	Errors []GQLError
}

func (e *ResponseError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, ge := range e.Errors {
		msgs = append(msgs, ge.Message)
	}
	return "graphql: " + strings.Join(msgs, "; ")
}

type HTTPClient struct {
	endpoint string
	http     *commonhttp.Client
	logger   logger.Logger
}

func NewClient(endpoint string, timeout time.Duration, log logger.Logger) *HTTPClient {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &HTTPClient{
		endpoint: endpoint,
		http:     commonhttp.NewClient(timeout),
		logger:   log,
	}
}

func (c *HTTPClient) Query(ctx context.Context, document string, variables map[string]interface{}, out interface{}) error {
	return c.do(ctx, document, variables, out)
}

func (c *HTTPClient) Mutate(ctx context.Context, document string, variables map[string]interface{}, out interface{}) error {
	return c.do(ctx, document, variables, out)
}

func (c *HTTPClient) do(ctx context.Context, document string, variables map[string]interface{}, out interface{}) error {
	start := time.Now()
	body, err := c.http.PostJSON(ctx, c.endpoint, request{Query: document, Variables: variables})
	if err != nil {
		c.logger.Debug("GraphQL request failed", map[string]interface{}{
			"operation": operationName(document),
			"duration":  time.Since(start).String(),
			"error":     err,
		})
		return err
	}

	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("failed to decode graphql response: %w", err)
	}

	hasData := len(resp.Data) > 0 && string(resp.Data) != "null"
	if len(resp.Errors) > 0 && !hasData {
		return &ResponseError{Errors: resp.Errors}
	}
	if len(resp.Errors) > 0 {
		c.logger.Warn("GraphQL partial errors", map[string]interface{}{
			"operation": operationName(document),
			"errors":    (&ResponseError{Errors: resp.Errors}).Error(),
		})
	}
	if !hasData {
		return fmt.Errorf("graphql response has no data")
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("failed to decode graphql data: %w", err)
	}

	c.logger.Debug("GraphQL request completed", map[string]interface{}{
		"operation": operationName(document),
		"duration":  time.Since(start).String(),
	})
	return nil
}

// operationName extracts the name after the leading "query"/"mutation" keyword.
func operationName(document string) string {
	fields := strings.FieldsFunc(strings.TrimSpace(document), func(r rune) bool {
		return r == ' ' || r == '\n' || r == '\t' || r == '(' || r == '{'
	})
	if len(fields) >= 2 && (fields[0] == "query" || fields[0] == "mutation") {
		return fields[1]
	}
	return "anonymous"
}
