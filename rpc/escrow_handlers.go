package rpc

import (
	"context"
	"net/http"

	"gigchain/core"
	"gigchain/core/types"
	"gigchain/native/escrow"
)

type jobCreateParams struct {
	Freelancer string `json:"freelancer"`
	Amount     string `json:"amount"`
}

type jobFundParams struct {
	JobID  uint64 `json:"jobId"`
	Amount string `json:"amount"`
}

type jobDeliveryParams struct {
	JobID      uint64 `json:"jobId"`
	ContentRef string `json:"contentRef"`
}

type jobIDParams struct {
	JobID uint64 `json:"jobId"`
}

type pageParams struct {
	Offset uint64 `json:"offset"`
	Limit  int    `json:"limit"`
}

type jobJSON struct {
	ID                uint64 `json:"id"`
	Client            string `json:"client"`
	Freelancer        string `json:"freelancer"`
	Amount            string `json:"amount"`
	Held              string `json:"held"`
	DeliveryReference string `json:"deliveryReference,omitempty"`
	Status            string `json:"status"`
	ReputationMinted  bool   `json:"reputationMinted"`
	ReputationReward  string `json:"reputationReward"`
	Resolved          bool   `json:"resolved"`
	DisputeID         uint64 `json:"disputeId,omitempty"`
	CreatedAt         int64  `json:"createdAt"`
	UpdatedAt         int64  `json:"updatedAt"`
}

type jobListJSON struct {
	Total uint64    `json:"total"`
	Jobs  []jobJSON `json:"jobs"`
}

func formatJobJSON(job *escrow.Job, held string) jobJSON {
	return jobJSON{
		ID:                job.ID,
		Client:            job.Client.Hex(),
		Freelancer:        job.Freelancer.Hex(),
		Amount:            types.FormatAmount(job.Amount),
		Held:              held,
		DeliveryReference: job.DeliveryReference,
		Status:            job.Status.String(),
		ReputationMinted:  job.ReputationMinted,
		ReputationReward:  types.FormatAmount(job.ReputationReward),
		Resolved:          job.Resolved,
		DisputeID:         job.DisputeID,
		CreatedAt:         job.CreatedAt,
		UpdatedAt:         job.UpdatedAt,
	}
}

func (s *Server) handleEscrowCreateJob(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	caller, ok := requireCaller(w, r, req)
	if !ok {
		return
	}
	var params jobCreateParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err.Error())
		return
	}
	freelancer, err := parseAddressParam("freelancer", params.Freelancer)
	if err != nil {
		writeInvalidParams(w, req.ID, err.Error())
		return
	}
	amount, err := types.ParseAmount(params.Amount)
	if err != nil {
		writeInvalidParams(w, req.ID, err.Error())
		return
	}
	receipt, err := s.node.CreateJob(r.Context(), caller, freelancer, amount)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, receipt)
}

func (s *Server) handleEscrowFundJob(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	caller, ok := requireCaller(w, r, req)
	if !ok {
		return
	}
	var params jobFundParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err.Error())
		return
	}
	amount, err := types.ParseAmount(params.Amount)
	if err != nil {
		writeInvalidParams(w, req.ID, err.Error())
		return
	}
	receipt, err := s.node.FundJob(r.Context(), caller, params.JobID, amount)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, receipt)
}

func (s *Server) handleEscrowSubmitDelivery(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	caller, ok := requireCaller(w, r, req)
	if !ok {
		return
	}
	var params jobDeliveryParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err.Error())
		return
	}
	receipt, err := s.node.SubmitDelivery(r.Context(), caller, params.JobID, params.ContentRef)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, receipt)
}

type jobTransition func(ctx context.Context, caller types.Address, id uint64) (*core.Receipt, error)

// jobAction covers the transitions that only take a job ID.
func (s *Server) jobAction(w http.ResponseWriter, r *http.Request, req *RPCRequest, action jobTransition) {
	caller, ok := requireCaller(w, r, req)
	if !ok {
		return
	}
	var params jobIDParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err.Error())
		return
	}
	receipt, err := action(r.Context(), caller, params.JobID)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, receipt)
}

func (s *Server) handleEscrowConfirmDelivery(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.jobAction(w, r, req, s.node.ConfirmDelivery)
}

func (s *Server) handleEscrowDispute(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.jobAction(w, r, req, s.node.DisputeJob)
}

func (s *Server) handleEscrowRefund(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.jobAction(w, r, req, s.node.Refund)
}

func (s *Server) handleEscrowRelease(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.jobAction(w, r, req, s.node.Release)
}

func (s *Server) handleEscrowGetJob(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params jobIDParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err.Error())
		return
	}
	job, err := s.node.Job(params.JobID)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	held, err := s.node.Held(params.JobID)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatJobJSON(job, types.FormatAmount(held)))
}

func (s *Server) handleEscrowListJobs(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params pageParams
	if len(req.Params) > 0 {
		if err := decodeParams(req, &params); err != nil {
			writeInvalidParams(w, req.ID, err.Error())
			return
		}
	}
	jobs, total, err := s.node.Jobs(params.Offset, params.Limit)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	out := jobListJSON{Total: total, Jobs: make([]jobJSON, 0, len(jobs))}
	for _, job := range jobs {
		held, err := s.node.Held(job.ID)
		if err != nil {
			writeNodeError(w, req.ID, err)
			return
		}
		out.Jobs = append(out.Jobs, formatJobJSON(job, types.FormatAmount(held)))
	}
	writeResult(w, req.ID, out)
}
