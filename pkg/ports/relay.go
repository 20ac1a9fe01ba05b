package ports

import (
	"context"
	"time"

	"github.com/aretw0/n8nbridge/pkg/domain"
)

// ActionRelay forwards an action to the external webhook.
// Implementations must never block past the context and must always return a result.
type ActionRelay interface {
	Execute(ctx context.Context, req domain.ActionRequest) domain.Result
}

// Observer is notified once per invocation with the final outcome.
type Observer interface {
	ObserveResult(req domain.ActionRequest, res domain.Result, elapsed time.Duration)
}
