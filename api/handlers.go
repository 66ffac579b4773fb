package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/xraph/testbank/contract"
	"github.com/xraph/testbank/host"
	"github.com/xraph/testbank/id"
	"github.com/xraph/testbank/identity"
	"github.com/xraph/testbank/receipt"
)

const maxBodyBytes = 1 << 20

// InvokeRequest is the body of a procedure or function call.
type InvokeRequest struct {
	Caller identity.Identity `json:"caller"`
	Value  uint64            `json:"value"`
	Input  json.RawMessage   `json:"input,omitempty"`
}

// FundRequest is the body of a wallet funding call.
type FundRequest struct {
	Amount uint64 `json:"amount"`
}

// WalletResponse reports a wallet balance.
type WalletResponse struct {
	Identity identity.Identity `json:"identity"`
	Balance  uint64            `json:"balance"`
}

// ErrorResponse is returned for every failed request. Aborted and rejected
// transactions carry their receipt.
type ErrorResponse struct {
	Error   string             `json:"error"`
	Fault   contract.FaultKind `json:"fault,omitempty"`
	Receipt *receipt.Receipt   `json:"receipt,omitempty"`
}

func (a *Handler) health(w http.ResponseWriter, r *http.Request) {
	if err := a.host.Store().Ping(r.Context()); err != nil {
		a.writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *Handler) listContracts(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, a.host.Deployments())
}

func (a *Handler) getContract(w http.ResponseWriter, r *http.Request) {
	dep, err := a.host.Deployment(chi.URLParam(r, "name"))
	if err != nil {
		a.writeError(w, err, nil)
		return
	}
	a.writeJSON(w, http.StatusOK, dep)
}

func (a *Handler) listEntryPoints(w http.ResponseWriter, r *http.Request) {
	eps, err := a.host.EntryPoints(chi.URLParam(r, "name"))
	if err != nil {
		a.writeError(w, err, nil)
		return
	}
	a.writeJSON(w, http.StatusOK, eps)
}

func (a *Handler) listSnapshots(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, err := a.host.Deployment(name); err != nil {
		a.writeError(w, err, nil)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		a.writeError(w, err, nil)
		return
	}
	snaps, err := a.host.Snapshots(r.Context(), name, limit)
	if err != nil {
		a.writeError(w, err, nil)
		return
	}
	a.writeJSON(w, http.StatusOK, snaps)
}

func (a *Handler) invokeProcedure(w http.ResponseWriter, r *http.Request) {
	a.invoke(w, r, contract.KindProcedure)
}

func (a *Handler) invokeFunction(w http.ResponseWriter, r *http.Request) {
	a.invoke(w, r, contract.KindFunction)
}

func (a *Handler) invoke(w http.ResponseWriter, r *http.Request, kind contract.Kind) {
	epID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 16)
	if err != nil {
		a.writeError(w, fmt.Errorf("%w: entry point id: %w", host.ErrInvalidInput, err), nil)
		return
	}

	var req InvokeRequest
	if err := decodeBody(w, r, &req); err != nil {
		a.writeError(w, err, nil)
		return
	}

	res, err := a.host.Invoke(r.Context(), host.Call{
		Contract: chi.URLParam(r, "name"),
		Kind:     kind,
		ID:       uint16(epID),
		Caller:   req.Caller,
		Value:    req.Value,
		Input:    req.Input,
	})
	if err != nil {
		var rcpt *receipt.Receipt
		if res != nil {
			rcpt = res.Receipt
		}
		a.writeError(w, err, rcpt)
		return
	}
	a.writeJSON(w, http.StatusOK, res)
}

func (a *Handler) getWallet(w http.ResponseWriter, r *http.Request) {
	holder, err := identity.Parse(chi.URLParam(r, "identity"))
	if err != nil {
		a.writeError(w, fmt.Errorf("%w: %w", host.ErrInvalidInput, err), nil)
		return
	}
	a.writeJSON(w, http.StatusOK, WalletResponse{Identity: holder, Balance: a.host.WalletBalance(holder)})
}

func (a *Handler) fundWallet(w http.ResponseWriter, r *http.Request) {
	holder, err := identity.Parse(chi.URLParam(r, "identity"))
	if err != nil {
		a.writeError(w, fmt.Errorf("%w: %w", host.ErrInvalidInput, err), nil)
		return
	}
	var req FundRequest
	if err := decodeBody(w, r, &req); err != nil {
		a.writeError(w, err, nil)
		return
	}
	if err := a.host.Fund(holder, req.Amount); err != nil {
		a.writeError(w, fmt.Errorf("%w: %w", host.ErrInvalidInput, err), nil)
		return
	}
	a.writeJSON(w, http.StatusOK, WalletResponse{Identity: holder, Balance: a.host.WalletBalance(holder)})
}

func (a *Handler) listReceipts(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		a.writeError(w, err, nil)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		a.writeError(w, err, nil)
		return
	}
	q := r.URL.Query()
	list, err := a.host.Receipts(r.Context(), receipt.ListOpts{
		Contract: q.Get("contract"),
		Status:   receipt.Status(q.Get("status")),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		a.writeError(w, err, nil)
		return
	}
	a.writeJSON(w, http.StatusOK, list)
}

func (a *Handler) getReceipt(w http.ResponseWriter, r *http.Request) {
	rcptID, err := id.ParseReceiptID(chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, fmt.Errorf("%w: %w", host.ErrInvalidInput, err), nil)
		return
	}
	rcpt, err := a.host.Receipt(r.Context(), rcptID)
	if err != nil {
		a.writeError(w, err, nil)
		return
	}
	a.writeJSON(w, http.StatusOK, rcpt)
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: request body: %w", host.ErrInvalidInput, err)
	}
	return nil
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: query %s=%q", host.ErrInvalidInput, key, raw)
	}
	return n, nil
}

func statusOf(err error) int {
	switch {
	case host.IsFault(err):
		return http.StatusUnprocessableEntity
	case host.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, host.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, host.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

func (a *Handler) writeError(w http.ResponseWriter, err error, rcpt *receipt.Receipt) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		a.logger.Error("api: request failed", "error", err)
	}
	resp := ErrorResponse{Error: err.Error(), Receipt: rcpt}
	if kind, ok := host.FaultKind(err); ok {
		resp.Fault = kind
	}
	a.writeJSON(w, status, resp)
}

func (a *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Warn("api: failed to encode response", "error", err)
	}
}
