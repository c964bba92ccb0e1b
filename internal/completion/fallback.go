package completion

import (
	"context"
	"errors"
	"fmt"
)

// FallbackClient tries primary first and falls back on error.
type FallbackClient struct {
	primary  Client
	fallback Client
}

func NewFallbackClient(primary, fallback Client) *FallbackClient {
	return &FallbackClient{primary: primary, fallback: fallback}
}

func (c *FallbackClient) Complete(ctx context.Context, req Request) (string, error) {
	if c == nil || c.primary == nil {
		if c != nil && c.fallback != nil {
			return c.fallback.Complete(ctx, req)
		}
		return "", fmt.Errorf("fallback client misconfigured")
	}
	text, err := c.primary.Complete(ctx, req)
	if err == nil {
		return text, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || c.fallback == nil {
		return "", err
	}
	text, fallbackErr := c.fallback.Complete(ctx, req)
	if fallbackErr != nil {
		return "", fmt.Errorf("primary completion error: %w; fallback completion error: %v", err, fallbackErr)
	}
	return text, nil
}
