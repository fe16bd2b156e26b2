// Package model defines the core data types shared across the wrapped-worker system.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// RequestStatus represents the current status of a wrapped request.
type RequestStatus string

const (
	// StatusPending indicates a paid request waiting to be processed.
	StatusPending RequestStatus = "pending"
	// StatusProcessing indicates a request currently being processed by a worker.
	StatusProcessing RequestStatus = "processing"
	// StatusCompleted indicates a request whose summary has been generated and stored.
	StatusCompleted RequestStatus = "completed"
	// StatusFailed indicates a request that exhausted its retries.
	StatusFailed RequestStatus = "failed"
)

// ErrNoPendingRequests is returned when a poll finds no admissible rows.
var ErrNoPendingRequests = errors.New("no pending requests")

// Valid returns true if the RequestStatus is one of the known states.
func (s RequestStatus) Valid() bool {
	return s == StatusPending || s == StatusProcessing || s == StatusCompleted || s == StatusFailed
}

// Terminal returns true if no further transitions are allowed from this status.
func (s RequestStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether the status machine allows moving to next.
// The machine is strictly forward: pending -> processing -> completed|failed.
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// UnmarshalText implements encoding.TextUnmarshaler so statuses parse from env/flags.
func (s *RequestStatus) UnmarshalText(text []byte) error {
	v := RequestStatus(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid RequestStatus: %q", string(text))
	}
	*s = v
	return nil
}

// WrappedRequest is one row of the external queue store. The worker reads and
// mutates rows but never owns their lifecycle; the store is the source of truth.
type WrappedRequest struct {
	ID            string          `json:"id"                      db:"id"`
	WalletAddress string          `json:"wallet_address"          db:"wallet_address"`
	TxSignature   string          `json:"tx_signature"            db:"tx_signature"`
	Status        RequestStatus   `json:"status"                  db:"status"`
	StatsJSON     json.RawMessage `json:"stats_json,omitempty"    db:"stats_json"`
	ErrorMessage  *string         `json:"error_message,omitempty" db:"error_message"`
	CreatedAt     time.Time       `json:"created_at"              db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"              db:"updated_at"`
}

// CreateRequestParams carries the fields needed to insert a new pending request.
type CreateRequestParams struct {
	WalletAddress string
	TxSignature   string
}

// Validate checks the insert parameters.
func (p *CreateRequestParams) Validate() error {
	if strings.TrimSpace(p.WalletAddress) == "" {
		return errors.New("wallet address is required")
	}
	if strings.TrimSpace(p.TxSignature) == "" {
		return errors.New("tx signature is required")
	}
	return nil
}

// RequestStats summarises queue store row counts per status.
type RequestStats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}
