// Package graphqltest provides a testify-backed graphql.Client for tests.
package graphqltest

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"
)

// MockClient answers with canned JSON. Expectations return (string, error):
//
//	client.On("Query", mock.Anything, doc, mock.Anything).Return(`{"x":1}`, nil)
type MockClient struct {
	mock.Mock
}

func (m *MockClient) Query(ctx context.Context, document string, variables map[string]interface{}, out interface{}) error {
	return m.respond(m.Called(ctx, document, variables), out)
}

func (m *MockClient) Mutate(ctx context.Context, document string, variables map[string]interface{}, out interface{}) error {
	return m.respond(m.Called(ctx, document, variables), out)
}

func (m *MockClient) respond(args mock.Arguments, out interface{}) error {
	if err := args.Error(1); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal([]byte(args.String(0)), out)
}

// Vars extracts the variables argument from a recorded call.
func Vars(args mock.Arguments) map[string]interface{} {
	v, _ := args.Get(2).(map[string]interface{})
	return v
}
