package service

import (
	"fmt"

	"github.com/abkawan/peachtree-bank/internal/apperrors"
	"github.com/abkawan/peachtree-bank/internal/models"
)

// TransitionPolicy decides whether a transaction may move from one state to another.
type TransitionPolicy func(from, to models.TransactionState) error

// PermissiveTransitions allows any valid state to follow any other.
func PermissiveTransitions(from, to models.TransactionState) error {
	return nil
}

var forwardOrder = map[models.TransactionState]int{
	models.Sent:     0,
	models.Received: 1,
	models.Paid:     2,
}

// ForwardTransitions only lets a transaction advance sent -> received -> paid.
// Re-applying the current state is allowed.
func ForwardTransitions(from, to models.TransactionState) error {
	if forwardOrder[to] < forwardOrder[from] {
		return apperrors.Validation(
			fmt.Sprintf("Cannot change state from %s to %s", from, to),
			map[string][]string{"state": {"State can only move forward: sent, received, paid"}},
		)
	}
	return nil
}

// PolicyByName resolves a configured policy name.
func PolicyByName(name string) (TransitionPolicy, error) {
	switch name {
	case "", "permissive":
		return PermissiveTransitions, nil
	case "forward":
		return ForwardTransitions, nil
	default:
		return nil, fmt.Errorf("unknown transition policy %q", name)
	}
}
