package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	coreerrors "gigchain/core/errors"
	"gigchain/core/types"
	"gigchain/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeRateLimited    = -32020
	codeNotFound       = -32022
	codeForbidden      = -32023
	codeConflict       = -32024
	codeInsufficient   = -32025
)

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// errorData is attached to every domain error so clients can branch on the
// kind without parsing messages.
type errorData struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// writeNodeError maps a node error onto an HTTP status and JSON-RPC code by
// its kind.
func writeNodeError(w http.ResponseWriter, id interface{}, err error) {
	if err == nil {
		return
	}
	status, code, message := http.StatusInternalServerError, codeServerError, "internal_error"
	switch {
	case errors.Is(err, coreerrors.ErrNotFound):
		status, code, message = http.StatusNotFound, codeNotFound, "not_found"
	case errors.Is(err, coreerrors.ErrUnauthorized):
		status, code, message = http.StatusForbidden, codeForbidden, "forbidden"
	case errors.Is(err, coreerrors.ErrWrongState),
		errors.Is(err, coreerrors.ErrAlreadyVoted),
		errors.Is(err, coreerrors.ErrAlreadyResolved):
		status, code, message = http.StatusConflict, codeConflict, "conflict"
	case errors.Is(err, coreerrors.ErrInsufficientBalance):
		status, code, message = http.StatusConflict, codeInsufficient, "insufficient_balance"
	case errors.Is(err, coreerrors.ErrInvalidAmount),
		errors.Is(err, coreerrors.ErrInvalidParty),
		errors.Is(err, coreerrors.ErrInvalidVote),
		errors.Is(err, coreerrors.ErrInvalidReason):
		status, code, message = http.StatusBadRequest, codeInvalidParams, "invalid_params"
	}
	writeError(w, status, id, code, message, errorData{Kind: coreerrors.KindName(err), Detail: err.Error()})
}

func writeInvalidParams(w http.ResponseWriter, id interface{}, detail string) {
	writeError(w, http.StatusBadRequest, id, codeInvalidParams, "invalid_params", detail)
}

// decodeParams expects exactly one parameter object.
func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	dec := json.NewDecoder(bytes.NewReader(req.Params[0]))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func parseAddressParam(field, raw string) (types.Address, error) {
	addr, err := types.ParseAddress(raw)
	if err != nil {
		return types.Address{}, fmt.Errorf("%s: %w", field, err)
	}
	return addr, nil
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.dispatch(recorder, r, req)
	module := req.Method
	if idx := strings.IndexByte(module, '_'); idx > 0 {
		module = module[:idx]
	}
	observability.ModuleMetrics().Observe(module, req.Method, recorder.status, time.Since(start))
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	switch req.Method {
	case "escrow_createJob":
		s.handleEscrowCreateJob(w, r, req)
	case "escrow_fundJob":
		s.handleEscrowFundJob(w, r, req)
	case "escrow_submitDelivery":
		s.handleEscrowSubmitDelivery(w, r, req)
	case "escrow_confirmDelivery":
		s.handleEscrowConfirmDelivery(w, r, req)
	case "escrow_dispute":
		s.handleEscrowDispute(w, r, req)
	case "escrow_refund":
		s.handleEscrowRefund(w, r, req)
	case "escrow_release":
		s.handleEscrowRelease(w, r, req)
	case "escrow_getJob":
		s.handleEscrowGetJob(w, r, req)
	case "escrow_listJobs":
		s.handleEscrowListJobs(w, r, req)
	case "reputation_balanceOf":
		s.handleReputationBalanceOf(w, r, req)
	case "reputation_transfer":
		s.handleReputationTransfer(w, r, req)
	case "reputation_mint":
		s.handleReputationMint(w, r, req)
	case "reputation_burn":
		s.handleReputationBurn(w, r, req)
	case "dao_registerAsJuror":
		s.handleDAORegisterAsJuror(w, r, req)
	case "dao_createDispute":
		s.handleDAOCreateDispute(w, r, req)
	case "dao_voteOnDispute":
		s.handleDAOVoteOnDispute(w, r, req)
	case "dao_resolveDispute":
		s.handleDAOResolveDispute(w, r, req)
	case "dao_getDispute":
		s.handleDAOGetDispute(w, r, req)
	case "dao_listDisputes":
		s.handleDAOListDisputes(w, r, req)
	case "dao_jurors":
		s.handleDAOJurors(w, r, req)
	case "bank_balance":
		s.handleBankBalance(w, r, req)
	case "events_list":
		s.handleEventsList(w, r, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("method %s not found", req.Method), nil)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
