package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"gas-estimator-go/internal/engine"
)

// REST Models
type estimateRequest struct {
	From                 string `json:"from"`
	To                   string `json:"to"`
	Data                 string `json:"data"`
	Value                string `json:"value"`
	GasPrice             string `json:"gas_price"`
	MaxFeePerGas         string `json:"max_fee_per_gas"`
	MaxPriorityFeePerGas string `json:"max_priority_fee_per_gas"`
}

type estimateResponse struct {
	GasLimit             string `json:"gas_limit"`
	GasPrice             string `json:"gas_price,omitempty"`
	BaseFee              string `json:"base_fee,omitempty"`
	MaxFeePerGas         string `json:"max_fee_per_gas,omitempty"`
	MaxPriorityFeePerGas string `json:"max_priority_fee_per_gas,omitempty"`
	EstimatedCostWei     string `json:"estimated_cost_wei"`
	EstimatedCostEth     string `json:"estimated_cost_eth"`
	EstimatedExecTime    string `json:"estimated_execution_time"`
	TypeOfTransaction    string `json:"type_of_transaction"`
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (s *Server) handleEstimateGas(w http.ResponseWriter, r *http.Request) {
	var req estimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "malformed JSON body")
		return
	}

	desc, err := engine.ParseDescriptor(engine.DescriptorInput{
		From:                 req.From,
		To:                   req.To,
		Value:                req.Value,
		Data:                 req.Data,
		GasPrice:             req.GasPrice,
		MaxFeePerGas:         req.MaxFeePerGas,
		MaxPriorityFeePerGas: req.MaxPriorityFeePerGas,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	estimate, err := s.estimator.Estimate(r.Context(), desc)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	resp := estimateResponse{
		GasLimit:          strconv.FormatUint(estimate.GasLimit, 10),
		EstimatedCostWei:  estimate.CostWei.Dec(),
		EstimatedCostEth:  estimate.CostEth,
		EstimatedExecTime: estimate.ExecutionTime,
		TypeOfTransaction: string(estimate.Quote.Type),
	}
	if estimate.Quote.Type == engine.TxTypeEIP1559 {
		resp.BaseFee = estimate.Quote.BaseFee.String()
		resp.MaxFeePerGas = estimate.Quote.MaxFee.String()
		resp.MaxPriorityFeePerGas = estimate.Quote.PriorityFee.String()
	} else {
		resp.GasPrice = estimate.Quote.GasPrice.String()
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter) {
	healthy, total := s.estimator.PoolStatus()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ok",
		"version":           version,
		"healthy_endpoints": healthy,
		"total_endpoints":   total,
	})
}

// writeEngineError 引擎错误到HTTP状态码的映射：
// 输入错误和revert是调用方的问题(400)，上游全挂是基础设施问题(503)
func writeEngineError(w http.ResponseWriter, err error) {
	var invalid *engine.InvalidInputError
	var revert *engine.RevertError
	var upstream *engine.UpstreamError

	switch {
	case errors.As(err, &invalid):
		writeError(w, http.StatusBadRequest, "invalid_input", invalid.Reason)
	case errors.As(err, &revert):
		writeError(w, http.StatusBadRequest, "gas_estimation_error", revert.Error())
	case errors.As(err, &upstream):
		writeError(w, http.StatusServiceUnavailable, "provider_error", upstream.Error())
	case errors.Is(err, engine.ErrNoFeeData):
		writeError(w, http.StatusServiceUnavailable, "provider_error", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	var body errorBody
	body.Error.Message = message
	body.Error.Type = errType
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed_to_encode_response", "err", err)
	}
}
