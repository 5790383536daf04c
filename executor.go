package main

import (
	"context"
	"log"

	"github.com/dnldd/swarm/shared"
	"github.com/google/uuid"
)

// paperExecutor fills every order immediately without touching a broker.
// It stands in for a real broker adapter until one is wired up.
type paperExecutor struct{}

// Ensure paperExecutor implements the OrderExecutor interface.
var _ shared.OrderExecutor = (*paperExecutor)(nil)

// SubmitOrder accepts the described order and reports it filled.
func (e *paperExecutor) SubmitOrder(ctx context.Context, market string, side shared.OrderSide, quantity float64, price float64) (shared.OrderResult, error) {
	id := uuid.New().String()
	log.Printf("paper fill: %s %s %.2f @ %.2f (%s)", side, market, quantity, price, id)

	return shared.OrderResult{Success: true, OrderID: id}, nil
}
