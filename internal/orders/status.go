package orders

import (
	"kitchen-backend/internal/apperr"
	"kitchen-backend/internal/models"
)

// transitions lists the statuses reachable from each status. Completed and
// cancelled orders are final.
var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusPending:   {models.OrderStatusConfirmed, models.OrderStatusCancelled},
	models.OrderStatusConfirmed: {models.OrderStatusCompleted, models.OrderStatusCancelled},
	models.OrderStatusCompleted: nil,
	models.OrderStatusCancelled: nil,
}

// CanTransition reports whether an order may move from one status to
// another. Staying in the same status is always allowed.
func CanTransition(from, to models.OrderStatus) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to models.OrderStatus) error {
	if !to.Valid() {
		return apperr.Validation("status must be one of pending, confirmed, completed, cancelled")
	}
	if !CanTransition(from, to) {
		return apperr.Validation("order cannot move from %s to %s", from, to)
	}
	return nil
}
