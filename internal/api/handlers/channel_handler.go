package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"signalboard/internal/models"
	"signalboard/internal/service"
)

// ChannelHandler обрабатывает HTTP запросы управления каналами.
//
// Endpoints:
// - GET    /api/v1/channels - список каналов (?active=true - только включенные)
// - POST   /api/v1/channels - создать канал
// - GET    /api/v1/channels/{id} - получить канал по uuid
// - GET    /api/v1/channels/key/{channelKey} - получить канал по ключу
// - PUT    /api/v1/channels/{id} - заменить конфигурацию канала
// - DELETE /api/v1/channels/{id} - удалить канал
// - PATCH  /api/v1/channels/{id}/toggle - включить/выключить канал
//
// Все мутации рассылаются websocket-сессиям и публикуются в NOTIFY,
// так что бот и другие дашборды видят изменение без перезапуска.
type ChannelHandler struct {
	channelService service.ChannelServiceInterface
}

// NewChannelHandler создает новый ChannelHandler с внедрением зависимостей
func NewChannelHandler(channelService service.ChannelServiceInterface) *ChannelHandler {
	return &ChannelHandler{
		channelService: channelService,
	}
}

// GetChannels возвращает список каналов.
//
// GET /api/v1/channels?active=true
func (h *ChannelHandler) GetChannels(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	channels, err := h.channelService.ListChannels(activeOnly)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, channels)
}

// GetChannel возвращает полную конфигурацию канала по uuid.
//
// GET /api/v1/channels/{id}
//
// Response 200 OK: объект канала со всеми суб-политиками
// Response 404 Not Found: {"error": "channel not found"}
func (h *ChannelHandler) GetChannel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	channel, err := h.channelService.GetChannel(id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, channel)
}

// GetChannelByKey возвращает конфигурацию канала по channel_key.
// Основной путь для бота: он знает каналы по ключам, а не по uuid.
//
// GET /api/v1/channels/key/{channelKey}
func (h *ChannelHandler) GetChannelByKey(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["channelKey"]

	channel, err := h.channelService.GetChannelByKey(key)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, channel)
}

// CreateChannel создает новый канал.
//
// POST /api/v1/channels
//
// Request body: объект канала; незаполненные политики получают
// значения по умолчанию.
//
// Response 201 Created: созданный канал (с uuid и дефолтами)
// Response 400 Bad Request: {"error": "risk_per_trade must be in (0, 1]"}
// Response 409 Conflict: {"error": "channel already exists"}
func (h *ChannelHandler) CreateChannel(w http.ResponseWriter, r *http.Request) {
	var req models.ChannelConfig
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	created, err := h.channelService.CreateChannel(&req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, created)
}

// UpdateChannel заменяет конфигурацию канала целиком.
//
// PUT /api/v1/channels/{id}
func (h *ChannelHandler) UpdateChannel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req models.ChannelConfig
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	updated, err := h.channelService.UpdateChannel(id, &req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, updated)
}

// DeleteChannel удаляет канал вместе со всеми суб-политиками.
//
// DELETE /api/v1/channels/{id}
func (h *ChannelHandler) DeleteChannel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.channelService.DeleteChannel(id); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, SuccessResponse{Message: "channel deleted"})
}

// ToggleChannel включает или выключает канал.
//
// PATCH /api/v1/channels/{id}/toggle
//
// Request body: {"is_active": false}
//
// Выключенный канал сохраняет конфигурацию, но бот перестает
// обрабатывать его сигналы.
func (h *ChannelHandler) ToggleChannel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req struct {
		IsActive bool `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	updated, err := h.channelService.SetChannelActive(id, req.IsActive)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, updated)
}
