package llmservice

import (
	"context"
	"time"

	"confluence/pkg/lifecycle"
)

// datetimeAdapter adapts a Client to lifecycle.DatetimeExtractor, so the
// Lifecycle Evaluator can call ExtractDatetime without
// pkg/lifecycle depending on this package's provider-registry machinery.
type datetimeAdapter struct {
	client Client
}

// NewDatetimeExtractor wraps client for use as a lifecycle.DatetimeExtractor.
func NewDatetimeExtractor(client Client) lifecycle.DatetimeExtractor {
	return datetimeAdapter{client: client}
}

func (a datetimeAdapter) ExtractDatetime(ctx context.Context, conversationText string, now time.Time) (lifecycle.DatetimeResult, error) {
	res, err := a.client.ExtractDatetime(ctx, conversationText, now)
	if err != nil {
		return lifecycle.DatetimeResult{}, err
	}
	return lifecycle.DatetimeResult{
		EventDatetime:  res.EventDatetime,
		DatetimeExists: res.DatetimeExists,
		Reason:         res.Reason,
	}, nil
}
