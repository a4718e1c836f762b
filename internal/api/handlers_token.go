package api

import (
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"

	"github.com/rudolf-ledger/internal/types"
)

// BalanceResponse is the balance of one account
type BalanceResponse struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

// AllowanceResponse is the allowance of a spender over an owner's funds
type AllowanceResponse struct {
	Owner     string `json:"owner"`
	Spender   string `json:"spender"`
	Allowance string `json:"allowance"`
}

// ClaimableResponse is the amount an account could claim now
type ClaimableResponse struct {
	Address   string `json:"address"`
	Claimable string `json:"claimable"`
}

// VestedResponse lists the still-locked unlocks of an account
type VestedResponse struct {
	Address string               `json:"address"`
	Vested  []types.VestedAmount `json:"vested"`
}

// SnapshotResponse is the total supply recorded by a snapshot
type SnapshotResponse struct {
	ID          uint64 `json:"id"`
	TotalSupply string `json:"totalSupply"`
}

// SnapshotBalanceResponse is an account balance recorded by a snapshot
type SnapshotBalanceResponse struct {
	ID      uint64 `json:"id"`
	Address string `json:"address"`
	Balance string `json:"balance"`
}

// handleGetToken handles GET /api/token
func (s *Server) handleGetToken(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.token.Info(r.Context()))
}

// handleGetBalance handles GET /api/accounts/{address}/balance
func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	address, ok := pathAddress(w, r, "address")
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, BalanceResponse{
		Address: address.Hex(),
		Balance: s.token.BalanceOf(r.Context(), address).Dec(),
	})
}

// handleGetAllowance handles GET /api/accounts/{address}/allowance/{spender}
func (s *Server) handleGetAllowance(w http.ResponseWriter, r *http.Request) {
	owner, ok := pathAddress(w, r, "address")
	if !ok {
		return
	}
	spender, ok := pathAddress(w, r, "spender")
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, AllowanceResponse{
		Owner:     owner.Hex(),
		Spender:   spender.Hex(),
		Allowance: s.token.Allowance(r.Context(), owner, spender).Dec(),
	})
}

// handleGetClaimable handles GET /api/accounts/{address}/claimable
func (s *Server) handleGetClaimable(w http.ResponseWriter, r *http.Request) {
	address, ok := pathAddress(w, r, "address")
	if !ok {
		return
	}

	amount, err := s.token.Claimable(r.Context(), address)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, ClaimableResponse{
		Address:   address.Hex(),
		Claimable: amount.Dec(),
	})
}

// handleGetVested handles GET /api/accounts/{address}/vested
func (s *Server) handleGetVested(w http.ResponseWriter, r *http.Request) {
	address, ok := pathAddress(w, r, "address")
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, VestedResponse{
		Address: address.Hex(),
		Vested:  s.token.Vested(r.Context(), address),
	})
}

// handleGetSnapshot handles GET /api/snapshots/{id}
func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathSnapshotID(w, r)
	if !ok {
		return
	}

	supply, err := s.token.TotalSupplyAt(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, SnapshotResponse{ID: id, TotalSupply: supply.Dec()})
}

// handleGetSnapshotBalance handles GET /api/snapshots/{id}/balances/{address}
func (s *Server) handleGetSnapshotBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathSnapshotID(w, r)
	if !ok {
		return
	}
	address, ok := pathAddress(w, r, "address")
	if !ok {
		return
	}

	balance, err := s.token.BalanceOfAt(r.Context(), address, id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, SnapshotBalanceResponse{
		ID:      id,
		Address: address.Hex(),
		Balance: balance.Dec(),
	})
}

// handleGetDistributions handles GET /api/distributions
func (s *Server) handleGetDistributions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.token.Distributions(r.Context()))
}

// handleGetDistributionRecords handles GET /api/distributions/records
func (s *Server) handleGetDistributionRecords(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"records": s.token.Airdrops(r.Context()),
	})
}

// pathAddress parses the address path variable name, writing a 400 on
// failure
func pathAddress(w http.ResponseWriter, r *http.Request, name string) (common.Address, bool) {
	address, err := types.ParseAddress(mux.Vars(r)[name])
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), map[string]interface{}{
			"parameter": name,
		})
		return common.Address{}, false
	}
	return address, true
}

// pathSnapshotID parses the snapshot id path variable
func pathSnapshotID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "snapshot id must be a non-negative integer", map[string]interface{}{
			"id": raw,
		})
		return 0, false
	}
	return id, true
}
