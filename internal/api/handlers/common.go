package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"signalboard/internal/repository"
	"signalboard/internal/service"
)

// ErrorResponse стандартный формат ответа об ошибке для всех API endpoints
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// SuccessResponse стандартный формат успешного ответа без тела
type SuccessResponse struct {
	Message string `json:"message,omitempty"`
}

// respondJSON пишет payload с указанным статусом
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// respondError пишет стандартный ответ об ошибке
func respondError(w http.ResponseWriter, status int, message string, details string) {
	respondJSON(w, status, ErrorResponse{Error: message, Details: details})
}

// Ошибки валидации сервисного слоя, которые транслируются в 400
var validationErrors = []error{
	service.ErrChannelKeyEmpty,
	service.ErrChannelKeyInvalid,
	service.ErrInvalidRiskPerTrade,
	service.ErrInvalidRiskTolerance,
	service.ErrInvalidPolicyKind,
	service.ErrInvalidTPIndex,
	service.ErrInvalidInstrument,
	service.ErrInvalidSide,
	service.ErrInvalidOrderHint,
	service.ErrSymbolEmpty,
	service.ErrInvalidSLPrice,
	service.ErrUnknownEventType,
	service.ErrInvalidDate,
}

// respondServiceError транслирует ошибки сервисного слоя в HTTP статусы:
// - не найдено -> 404
// - дубликат -> 409
// - ошибки валидации -> 400
// - хранилище недоступно -> 503
// - все остальное -> 500
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrChannelNotFound),
		errors.Is(err, repository.ErrTradeNotFound):
		respondError(w, http.StatusNotFound, err.Error(), "")

	case errors.Is(err, repository.ErrChannelExists),
		errors.Is(err, repository.ErrTradeExists):
		respondError(w, http.StatusConflict, err.Error(), "")

	case isValidationError(err):
		respondError(w, http.StatusBadRequest, err.Error(), "")

	case repository.IsUnavailable(err):
		respondError(w, http.StatusServiceUnavailable, "storage unavailable", err.Error())

	default:
		respondError(w, http.StatusInternalServerError, "internal error", err.Error())
	}
}

func isValidationError(err error) bool {
	for _, ve := range validationErrors {
		if errors.Is(err, ve) {
			return true
		}
	}
	return false
}
