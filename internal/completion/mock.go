package completion

import (
	"context"
	"encoding/json"
)

// SampleReply is spoken when no completion backend is configured.
const SampleReply = "Copy. Holding pattern. Returning latest telemetry and locking perimeter."

// MockClient returns a fixed reply in the strict JSON shape.
type MockClient struct{}

func NewMockClient() *MockClient { return &MockClient{} }

func (MockClient) Complete(ctx context.Context, _ Request) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	raw, err := json.Marshal(map[string]string{"reply": SampleReply, "sfx": "none"})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
