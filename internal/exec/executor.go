// Package exec provides the outbound execution surface the pipeline engine
// drives, plus a dry-run connector that simulates order lifecycle against
// mark prices for paper trading and tests.
package exec

import (
	"context"

	"main/internal/model"
)

// Executor is the execution collaborator consuming accepted strategy intents.
// Live venue connectors and the dry-run simulator both satisfy it.
type Executor interface {
	Submit(ctx context.Context, order model.NewOrder) error
	Cancel(ctx context.Context, orderID string, symbol model.Symbol, exchange model.Exchange) error
	CancelAll(ctx context.Context, symbol model.Symbol, exchange model.Exchange) error
}
