package rpc

import (
	"encoding/json"
	"net/http"
	"strings"

	"gigchain/core/types"
	"gigchain/native/dispute"
)

type disputeCreateParams struct {
	Counterparty string `json:"counterparty"`
	Reason       string `json:"reason"`
	Fee          string `json:"fee"`
	JobID        uint64 `json:"jobId,omitempty"`
}

type disputeVoteParams struct {
	DisputeID uint64          `json:"disputeId"`
	Side      json.RawMessage `json:"side"`
}

type disputeIDParams struct {
	DisputeID uint64 `json:"disputeId"`
}

type voteJSON struct {
	Juror string `json:"juror"`
	Side  string `json:"side"`
}

type disputeJSON struct {
	ID              uint64     `json:"id"`
	JobID           uint64     `json:"jobId,omitempty"`
	Creator         string     `json:"creator"`
	Client          string     `json:"client"`
	Freelancer      string     `json:"freelancer"`
	Reason          string     `json:"reason"`
	Fee             string     `json:"fee"`
	VotesClient     uint64     `json:"votesClient"`
	VotesFreelancer uint64     `json:"votesFreelancer"`
	Votes           []voteJSON `json:"votes"`
	Resolved        bool       `json:"resolved"`
	Winner          string     `json:"winner,omitempty"`
	CreatedAt       int64      `json:"createdAt"`
	ResolvedAt      int64      `json:"resolvedAt,omitempty"`
}

type disputeListJSON struct {
	Total    uint64        `json:"total"`
	Disputes []disputeJSON `json:"disputes"`
}

func formatDisputeJSON(d *dispute.Dispute) disputeJSON {
	out := disputeJSON{
		ID:              d.ID,
		JobID:           d.JobID,
		Creator:         d.Creator.Hex(),
		Client:          d.Client.Hex(),
		Freelancer:      d.Freelancer.Hex(),
		Reason:          d.Reason,
		Fee:             types.FormatAmount(d.Fee),
		VotesClient:     d.VotesClient,
		VotesFreelancer: d.VotesFreelancer,
		Votes:           make([]voteJSON, 0, len(d.Votes)),
		Resolved:        d.Resolved,
		CreatedAt:       d.CreatedAt,
		ResolvedAt:      d.ResolvedAt,
	}
	for _, v := range d.Votes {
		out.Votes = append(out.Votes, voteJSON{Juror: v.Juror.Hex(), Side: v.Side.String()})
	}
	if d.Resolved {
		out.Winner = d.Winner.String()
	}
	return out
}

// parseSideParam accepts 1, 2, "1", "2", "client" or "freelancer".
func parseSideParam(raw json.RawMessage) dispute.Side {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return dispute.ParseSide(text)
	}
	return dispute.ParseSide(strings.TrimSpace(string(raw)))
}

func (s *Server) handleDAORegisterAsJuror(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	caller, ok := requireCaller(w, r, req)
	if !ok {
		return
	}
	if len(req.Params) > 1 {
		writeInvalidParams(w, req.ID, "no parameters expected")
		return
	}
	receipt, err := s.node.RegisterAsJuror(r.Context(), caller)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, receipt)
}

func (s *Server) handleDAOCreateDispute(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	caller, ok := requireCaller(w, r, req)
	if !ok {
		return
	}
	var params disputeCreateParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err.Error())
		return
	}
	counterparty, err := parseAddressParam("counterparty", params.Counterparty)
	if err != nil {
		writeInvalidParams(w, req.ID, err.Error())
		return
	}
	fee, err := types.ParseAmount(params.Fee)
	if err != nil {
		writeInvalidParams(w, req.ID, err.Error())
		return
	}
	receipt, err := s.node.CreateDispute(r.Context(), caller, counterparty, params.Reason, fee, params.JobID)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, receipt)
}

func (s *Server) handleDAOVoteOnDispute(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	caller, ok := requireCaller(w, r, req)
	if !ok {
		return
	}
	var params disputeVoteParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err.Error())
		return
	}
	receipt, err := s.node.VoteOnDispute(r.Context(), caller, params.DisputeID, parseSideParam(params.Side))
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, receipt)
}

func (s *Server) handleDAOResolveDispute(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	caller, ok := requireCaller(w, r, req)
	if !ok {
		return
	}
	var params disputeIDParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err.Error())
		return
	}
	receipt, err := s.node.ResolveDispute(r.Context(), caller, params.DisputeID)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, receipt)
}

func (s *Server) handleDAOGetDispute(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params disputeIDParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err.Error())
		return
	}
	d, err := s.node.Dispute(params.DisputeID)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatDisputeJSON(d))
}

func (s *Server) handleDAOListDisputes(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params pageParams
	if len(req.Params) > 0 {
		if err := decodeParams(req, &params); err != nil {
			writeInvalidParams(w, req.ID, err.Error())
			return
		}
	}
	disputes, total, err := s.node.Disputes(params.Offset, params.Limit)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	out := disputeListJSON{Total: total, Disputes: make([]disputeJSON, 0, len(disputes))}
	for _, d := range disputes {
		out.Disputes = append(out.Disputes, formatDisputeJSON(d))
	}
	writeResult(w, req.ID, out)
}

func (s *Server) handleDAOJurors(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	jurors, err := s.node.Jurors()
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	out := make([]string, 0, len(jurors))
	for _, j := range jurors {
		out = append(out, j.Hex())
	}
	writeResult(w, req.ID, out)
}
