package rpc

import (
	"context"
	"net/http"

	"github.com/holiman/uint256"

	"gigchain/core"
	"gigchain/core/types"
)

type addressParams struct {
	Address string `json:"address"`
}

type reputationMoveParams struct {
	To     string `json:"to,omitempty"`
	From   string `json:"from,omitempty"`
	Amount string `json:"amount"`
}

type eventsListParams struct {
	From  uint64 `json:"from"`
	Limit int    `json:"limit"`
}

type balanceJSON struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

func (s *Server) handleReputationBalanceOf(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params addressParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err.Error())
		return
	}
	addr, err := parseAddressParam("address", params.Address)
	if err != nil {
		writeInvalidParams(w, req.ID, err.Error())
		return
	}
	balance, err := s.node.Reputation(addr)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, balanceJSON{Address: addr.Hex(), Balance: types.FormatAmount(balance)})
}

type reputationTransition func(ctx context.Context, caller, target types.Address, amount *uint256.Int) (*core.Receipt, error)

// reputationAction decodes {to|from, amount}. field selects which identity
// the transition targets.
func (s *Server) reputationAction(w http.ResponseWriter, r *http.Request, req *RPCRequest, field string, action reputationTransition) {
	caller, ok := requireCaller(w, r, req)
	if !ok {
		return
	}
	var params reputationMoveParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err.Error())
		return
	}
	raw := params.To
	if field == "from" {
		raw = params.From
	}
	target, err := parseAddressParam(field, raw)
	if err != nil {
		writeInvalidParams(w, req.ID, err.Error())
		return
	}
	amount, err := types.ParseAmount(params.Amount)
	if err != nil {
		writeInvalidParams(w, req.ID, err.Error())
		return
	}
	receipt, err := action(r.Context(), caller, target, amount)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, receipt)
}

func (s *Server) handleReputationTransfer(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.reputationAction(w, r, req, "to", s.node.ReputationTransfer)
}

func (s *Server) handleReputationMint(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.reputationAction(w, r, req, "to", s.node.ReputationMint)
}

func (s *Server) handleReputationBurn(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.reputationAction(w, r, req, "from", s.node.ReputationBurn)
}

func (s *Server) handleBankBalance(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params addressParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err.Error())
		return
	}
	addr, err := parseAddressParam("address", params.Address)
	if err != nil {
		writeInvalidParams(w, req.ID, err.Error())
		return
	}
	balance, err := s.node.Balance(addr)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, balanceJSON{Address: addr.Hex(), Balance: types.FormatAmount(balance)})
}

func (s *Server) handleEventsList(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params eventsListParams
	if len(req.Params) > 0 {
		if err := decodeParams(req, &params); err != nil {
			writeInvalidParams(w, req.ID, err.Error())
			return
		}
	}
	records, err := s.node.Events(params.From, params.Limit)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, records)
}
