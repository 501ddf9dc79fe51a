// Package orderstatus holds the order lifecycle: the status set, the legal
// transitions between statuses and the customer cancellation rules.
package orderstatus

import (
	"slices"

	"github.com/example/bakery/internal/apperrors"
)

// Status is the lifecycle state of an order.
type Status string

const (
	Pending   Status = "pending"
	Confirmed Status = "confirmed"
	Preparing Status = "preparing"
	Ready     Status = "ready"
	Delivered Status = "delivered"
	Cancelled Status = "cancelled"
)

// All lists every status in lifecycle order.
var All = []Status{Pending, Confirmed, Preparing, Ready, Delivered, Cancelled}

// confirmed and preparing may jump straight to delivered.
var transitions = map[Status][]Status{
	Pending:   {Confirmed, Cancelled},
	Confirmed: {Preparing, Delivered, Cancelled},
	Preparing: {Ready, Delivered, Cancelled},
	Ready:     {Delivered},
	Delivered: {},
	Cancelled: {},
}

const (
	ReasonReady     = "order is already being prepared for delivery; contact support to cancel it"
	ReasonDelivered = "order has already been delivered"
	ReasonCancelled = "order has already been cancelled"
	ReasonUnknown   = "order status is unknown"
)

func (s Status) String() string {
	return string(s)
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Parse converts raw input into a Status.
func Parse(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", apperrors.Validation("unknown order status %q", raw)
	}
	return s, nil
}

// CanTransition reports whether to is in the allowed set of from.
func CanTransition(from, to Status) bool {
	return slices.Contains(transitions[from], to)
}

// Allowed returns a copy of the statuses reachable from from.
func Allowed(from Status) []Status {
	return slices.Clone(transitions[from])
}

// IsTerminal reports whether s has no outgoing transitions.
func IsTerminal(s Status) bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// Cancellable reports whether a customer may still cancel an order in status s.
// When it may not, reason explains why.
func Cancellable(s Status) (bool, string) {
	switch s {
	case Pending, Confirmed, Preparing:
		return true, ""
	case Ready:
		return false, ReasonReady
	case Delivered:
		return false, ReasonDelivered
	case Cancelled:
		return false, ReasonCancelled
	default:
		return false, ReasonUnknown
	}
}

// CancellableStatuses lists the statuses from which cancellation is allowed.
func CancellableStatuses() []Status {
	return []Status{Pending, Confirmed, Preparing}
}
