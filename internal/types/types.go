// Package types provides common type definitions for the Rudolf token ledger.
package types

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Decimals is the fixed decimal scale of the token
const Decimals = 18

// EventKind represents the type of a ledger notification
type EventKind string

const (
	// EventTransfer is emitted on every balance movement, including mints
	EventTransfer EventKind = "transfer"
	// EventApproval is emitted when an allowance is set
	EventApproval EventKind = "approval"
	// EventSnapshot is emitted when a balance snapshot is taken
	EventSnapshot EventKind = "snapshot"
	// EventXmasAirdrop is emitted when a distribution occurs
	EventXmasAirdrop EventKind = "xmas_airdrop"
	// EventOwnershipTransferred is emitted when the owner changes
	EventOwnershipTransferred EventKind = "ownership_transferred"
	// EventPaused is emitted when the token is paused
	EventPaused EventKind = "paused"
	// EventUnpaused is emitted when the token is unpaused
	EventUnpaused EventKind = "unpaused"
)

// AllEventKinds lists every notification kind in a stable order
var AllEventKinds = []EventKind{
	EventTransfer,
	EventApproval,
	EventSnapshot,
	EventXmasAirdrop,
	EventOwnershipTransferred,
	EventPaused,
	EventUnpaused,
}

// IsValid checks whether the kind is a known notification kind
func (k EventKind) IsValid() bool {
	for _, known := range AllEventKinds {
		if k == known {
			return true
		}
	}
	return false
}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// VestedAmount is one scheduled future unlock of an airdrop entitlement
type VestedAmount struct {
	ReleaseTime int64  `json:"releaseTime"` // Unix timestamp
	Amount      string `json:"amount"`      // Base units (as string for big numbers)
}

// ClaimableVersion identifies the ledger state a claimable amount was
// computed from. Claims counts the claims account has settled.
type ClaimableVersion struct {
	Account       common.Address
	Distributions int
	Claims        uint64
}

// ClaimableQuote is a claimable amount together with the version it was
// computed at. It stays exact until ValidUntil, the next unlock of the
// account; 0 means no unlock is pending.
type ClaimableQuote struct {
	ClaimableVersion
	Amount     *uint256.Int
	ValidUntil int64
}

// Expired reports whether the quote no longer holds at now
func (q ClaimableQuote) Expired(now int64) bool {
	return q.ValidUntil != 0 && now >= q.ValidUntil
}

// TokenInfo summarizes the token state
type TokenInfo struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Decimals    int    `json:"decimals"`
	TotalSupply string `json:"totalSupply"`
	Owner       string `json:"owner"`
	Paused      bool   `json:"paused"`
}

// DistributionInfo summarizes the airdrop schedule
type DistributionInfo struct {
	NextYear           int    `json:"nextYear"`
	NextTime           int64  `json:"nextTime"`
	Count              int    `json:"count"`
	LastSnapshotID     uint64 `json:"lastSnapshotId"`
	EmissionPerAirdrop string `json:"emissionPerAirdrop"`
}

// AirdropInfo is one recorded distribution
type AirdropInfo struct {
	Year        int    `json:"year"`
	SnapshotID  uint64 `json:"snapshotId"`
	Time        int64  `json:"time"` // Scheduled Dec-25 instant
	TotalSupply string `json:"totalSupply"`
	Amount      string `json:"amount"`
}

// ReceiptInfo describes a committed mutation
type ReceiptInfo struct {
	Events        int    `json:"events"`
	Distributions int    `json:"distributions"`
	Amount        string `json:"amount,omitempty"`
	BlockTime     int64  `json:"blockTime"`
}

// ParseAddress validates and parses a hex account address
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address format: %s", s)
	}
	return common.HexToAddress(s), nil
}

// ParseAmount parses a base-unit decimal string into a 256-bit amount
func ParseAmount(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("amount is required")
	}
	amount, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return amount, nil
}

// WithDecimals scales a whole-token count to base units
func WithDecimals(tokens uint64) *uint256.Int {
	scale := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(Decimals))
	return new(uint256.Int).Mul(uint256.NewInt(tokens), scale)
}
