package api

import (
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/rudolf-ledger/internal/types"
)

// TransferRequest is the body of POST /api/transfer
type TransferRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// ApproveRequest is the body of POST /api/approve
type ApproveRequest struct {
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

// TransferFromRequest is the body of POST /api/transfer-from
type TransferFromRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// OwnershipRequest is the body of POST /api/admin/ownership
type OwnershipRequest struct {
	NewOwner string `json:"newOwner"`
}

// handleTransfer handles POST /api/transfer
func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	caller, ok := requestCaller(w, r)
	if !ok {
		return
	}

	var req TransferRequest
	if !decodeBody(w, r, &req) {
		return
	}
	to, ok := bodyAddress(w, "to", req.To)
	if !ok {
		return
	}
	amount, ok := bodyAmount(w, req.Amount)
	if !ok {
		return
	}

	s.respondReceipt(w)(s.token.Transfer(r.Context(), caller, to, amount))
}

// handleApprove handles POST /api/approve
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	caller, ok := requestCaller(w, r)
	if !ok {
		return
	}

	var req ApproveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	spender, ok := bodyAddress(w, "spender", req.Spender)
	if !ok {
		return
	}
	amount, ok := bodyAmount(w, req.Amount)
	if !ok {
		return
	}

	s.respondReceipt(w)(s.token.Approve(r.Context(), caller, spender, amount))
}

// handleTransferFrom handles POST /api/transfer-from
func (s *Server) handleTransferFrom(w http.ResponseWriter, r *http.Request) {
	caller, ok := requestCaller(w, r)
	if !ok {
		return
	}

	var req TransferFromRequest
	if !decodeBody(w, r, &req) {
		return
	}
	from, ok := bodyAddress(w, "from", req.From)
	if !ok {
		return
	}
	to, ok := bodyAddress(w, "to", req.To)
	if !ok {
		return
	}
	amount, ok := bodyAmount(w, req.Amount)
	if !ok {
		return
	}

	s.respondReceipt(w)(s.token.TransferFrom(r.Context(), caller, from, to, amount))
}

// handleClaim handles POST /api/claim
func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	caller, ok := requestCaller(w, r)
	if !ok {
		return
	}
	s.respondReceipt(w)(s.token.Claim(r.Context(), caller))
}

// handlePause handles POST /api/admin/pause
func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	caller, ok := requestCaller(w, r)
	if !ok {
		return
	}
	s.respondReceipt(w)(s.token.Pause(r.Context(), caller))
}

// handleUnpause handles POST /api/admin/unpause
func (s *Server) handleUnpause(w http.ResponseWriter, r *http.Request) {
	caller, ok := requestCaller(w, r)
	if !ok {
		return
	}
	s.respondReceipt(w)(s.token.Unpause(r.Context(), caller))
}

// handleTransferOwnership handles POST /api/admin/ownership
func (s *Server) handleTransferOwnership(w http.ResponseWriter, r *http.Request) {
	caller, ok := requestCaller(w, r)
	if !ok {
		return
	}

	var req OwnershipRequest
	if !decodeBody(w, r, &req) {
		return
	}
	// the zero address is a valid input here; the engine rejects it
	newOwner, ok := bodyAddress(w, "newOwner", req.NewOwner)
	if !ok {
		return
	}

	s.respondReceipt(w)(s.token.TransferOwnership(r.Context(), caller, newOwner))
}

// handleRenounceOwnership handles DELETE /api/admin/ownership
func (s *Server) handleRenounceOwnership(w http.ResponseWriter, r *http.Request) {
	caller, ok := requestCaller(w, r)
	if !ok {
		return
	}
	s.respondReceipt(w)(s.token.RenounceOwnership(r.Context(), caller))
}

// respondReceipt writes the outcome of a mutation
func (s *Server) respondReceipt(w http.ResponseWriter) func(*types.ReceiptInfo, error) {
	return func(info *types.ReceiptInfo, err error) {
		if err != nil {
			respondServiceError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, info)
	}
}

// requestCaller reads the caller from the X-Account header
func requestCaller(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	raw := strings.TrimSpace(r.Header.Get(headerAccount))
	if raw == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, headerAccount+" header is required", nil)
		return common.Address{}, false
	}
	caller, err := types.ParseAddress(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), map[string]interface{}{
			"header": headerAccount,
		})
		return common.Address{}, false
	}
	return caller, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := parseJSONBody(r, v); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", map[string]interface{}{
			"error": err.Error(),
		})
		return false
	}
	return true
}

func bodyAddress(w http.ResponseWriter, field, raw string) (common.Address, bool) {
	address, err := types.ParseAddress(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), map[string]interface{}{
			"field": field,
		})
		return common.Address{}, false
	}
	return address, true
}

func bodyAmount(w http.ResponseWriter, raw string) (*uint256.Int, bool) {
	amount, err := types.ParseAmount(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), map[string]interface{}{
			"field": "amount",
		})
		return nil, false
	}
	return amount, true
}
