package api

import (
	"database/sql"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"signalboard/internal/api/handlers"
	"signalboard/internal/api/middleware"
	"signalboard/internal/service"
	"signalboard/internal/websocket"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	ChannelService service.ChannelServiceInterface
	TradeService   service.TradeServiceInterface
	StatsService   service.StatsServiceInterface

	// DB и Listener нужны только для /health
	DB       *sql.DB
	Listener handlers.ListenerStatus

	// Hub обслуживает /ws/stream; nil отключает websocket endpoint
	Hub *websocket.Hub

	// APITokenHash - bcrypt-хеш токена для /api/v1 (пусто = без auth)
	APITokenHash string
	// CORSAllowedOrigins - разрешенные origin через запятую
	CORSAllowedOrigins string

	Log *zap.Logger
}

// SetupRoutes настраивает все HTTP маршруты приложения.
//
// Структура маршрутов:
//
// /api/v1/
//
//	├── /channels/
//	│   ├── GET / - список каналов (?active=true)
//	│   ├── POST / - создать канал
//	│   ├── GET /{id} - канал по uuid
//	│   ├── GET /key/{channelKey} - канал по ключу
//	│   ├── PUT /{id} - заменить конфигурацию
//	│   ├── DELETE /{id} - удалить канал
//	│   └── PATCH /{id}/toggle - включить/выключить
//	├── /trades/
//	│   ├── GET / - сделки за день (?date=&channel_id=&status=&limit=)
//	│   ├── POST / - зарегистрировать сигнал
//	│   ├── GET /{ref} - сделка по trade_id или тикету
//	│   └── POST /{tradeID}/events - событие жизненного цикла
//	└── /statistics/
//	    ├── GET /daily - агрегаты за день
//	    └── GET /summary - агрегаты за период
//
// /ws/stream - WebSocket для real-time обновлений
// /health    - проверка БД и состояния слушателя
// /metrics   - Prometheus метрики
//
// Middleware применяется в следующем порядке:
// 1. Recovery (для всех маршрутов)
// 2. Logging (для всех маршрутов)
// 3. CORS (для всех маршрутов)
// 4. Auth (только для /api/v1)
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	// Глобальные middleware (применяются ко всем маршрутам)
	router.Use(middleware.Recovery(deps.Log))
	router.Use(middleware.Logging(deps.Log))
	router.Use(middleware.CORS(deps.CORSAllowedOrigins))

	// API v1 routes
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Auth(deps.APITokenHash, deps.Log))

	// Channel routes
	if deps.ChannelService != nil {
		channelHandler := handlers.NewChannelHandler(deps.ChannelService)
		api.HandleFunc("/channels", channelHandler.GetChannels).Methods("GET")
		api.HandleFunc("/channels", channelHandler.CreateChannel).Methods("POST")
		api.HandleFunc("/channels/key/{channelKey}", channelHandler.GetChannelByKey).Methods("GET")
		api.HandleFunc("/channels/{id}", channelHandler.GetChannel).Methods("GET")
		api.HandleFunc("/channels/{id}", channelHandler.UpdateChannel).Methods("PUT")
		api.HandleFunc("/channels/{id}", channelHandler.DeleteChannel).Methods("DELETE")
		api.HandleFunc("/channels/{id}/toggle", channelHandler.ToggleChannel).Methods("PATCH")
	}

	// Trade routes
	if deps.TradeService != nil {
		tradeHandler := handlers.NewTradeHandler(deps.TradeService)
		api.HandleFunc("/trades", tradeHandler.GetTrades).Methods("GET")
		api.HandleFunc("/trades", tradeHandler.CreateTrade).Methods("POST")
		api.HandleFunc("/trades/{tradeID}/events", tradeHandler.ApplyEvent).Methods("POST")
		api.HandleFunc("/trades/{ref}", tradeHandler.GetTrade).Methods("GET")
	}

	// Statistics routes
	if deps.StatsService != nil {
		statsHandler := handlers.NewStatsHandler(deps.StatsService)
		api.HandleFunc("/statistics/daily", statsHandler.GetDailyStats).Methods("GET")
		api.HandleFunc("/statistics/summary", statsHandler.GetSummaryStats).Methods("GET")
	}

	// WebSocket route (вне /api/v1: браузерный WebSocket не умеет
	// передавать Authorization заголовок)
	if deps.Hub != nil {
		router.HandleFunc("/ws/stream", func(w http.ResponseWriter, r *http.Request) {
			websocket.ServeWS(deps.Hub, w, r)
		})
	}

	// Health check endpoint. Nil-указатель на hub нельзя передавать
	// интерфейсом напрямую: non-nil интерфейс с nil значением внутри
	// прошел бы проверку sessions != nil.
	var sessions handlers.SessionCounter
	if deps.Hub != nil {
		sessions = deps.Hub
	}
	statusHandler := handlers.NewStatusHandler(deps.DB, deps.Listener, sessions)
	router.HandleFunc("/health", statusHandler.Health).Methods("GET")

	// Prometheus metrics
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return router
}
