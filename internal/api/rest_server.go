package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/annel0/geocoin/internal/auth"
	"github.com/annel0/geocoin/internal/location"
	"github.com/annel0/geocoin/internal/logging"
	"github.com/annel0/geocoin/internal/middleware"
	"github.com/annel0/geocoin/internal/session"
	"github.com/annel0/geocoin/internal/vec"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Game: операции сессии, доступные через API
type Game interface {
	View(ctx context.Context) (session.View, error)
	Move(ctx context.Context, di, dj int) (session.View, error)
	MoveTo(ctx context.Context, p vec.LatLng) (session.View, error)
	Collect(ctx context.Context, i, j int) (session.View, error)
	Deposit(ctx context.Context, i, j int) (session.View, error)
	Reset(ctx context.Context) (session.View, error)
	ToggleLiveLocation(ctx context.Context) (bool, error)
}

// LocationFeed принимает измерения геолокации от браузера
type LocationFeed interface {
	Attach() (detach func())
	Publish(fix location.Fix)
	Fail(err error)
}

// RestServer представляет REST API сервер
type RestServer struct {
	router     *gin.Engine
	game       Game
	feed       LocationFeed
	auth       *auth.Signer
	port       string
	metrics    *ServerMetrics
	logger     *logging.Logger
	httpServer *http.Server
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Port        string                // порт для запуска сервера
	Game        Game                  // сессия игры
	Location    LocationFeed          // nil: /ws/location не регистрируется
	Auth        *auth.Signer          // nil: API без авторизации
	Registry    *prometheus.Registry  // реестр метрик для /metrics
	ServiceName string                // имя сервиса для трассировки
	Logger      *logging.Logger
}

// GenericResponse общий формат ответа
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// MoveRequest: шаг в клетках ({di,dj}) либо переход в точку ({lat,lng})
type MoveRequest struct {
	DI  *int     `json:"di"`
	DJ  *int     `json:"dj"`
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// NewRestServer создает новый REST API сервер
func NewRestServer(config Config) *RestServer {
	if config.Port == "" {
		config.Port = ":8088"
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}
	if config.ServiceName == "" {
		config.ServiceName = "geocoin"
	}
	if config.Logger == nil {
		config.Logger = logging.GetServerLogger()
	}

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	router.Use(otelgin.Middleware(config.ServiceName))
	router.Use(middleware.NewRequestLogger(config.Logger).Handler())

	promMw := middleware.NewPrometheusMiddleware(config.ServiceName, config.Registry)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, config.Registry)

	server := &RestServer{
		router:  router,
		game:    config.Game,
		feed:    config.Location,
		auth:    config.Auth,
		port:    config.Port,
		metrics: NewServerMetrics(),
		logger:  config.Logger,
	}

	server.setupRoutes()
	return server
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	// Middleware для CORS
	rs.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	rs.router.GET("/health", rs.handleHealth)

	protected := []gin.HandlerFunc{}
	if rs.auth != nil {
		protected = append(protected, rs.auth.Middleware())
	}

	api := rs.router.Group("/api", protected...)
	{
		api.GET("/state", rs.handleState)
		api.POST("/move", rs.handleMove)
		api.POST("/caches/:i/:j/collect", rs.handleCollect)
		api.POST("/caches/:i/:j/deposit", rs.handleDeposit)
		api.POST("/reset", rs.handleReset)
		api.POST("/live", rs.handleLive)
		api.GET("/server", rs.handleServerInfo)
	}

	if rs.feed != nil {
		rs.router.GET("/ws/location", append(protected, rs.handleLocationSocket)...)
	}
}

// Handler возвращает http.Handler сервера (для тестов и встраивания)
func (rs *RestServer) Handler() http.Handler {
	return rs.router
}

// handleState возвращает текущее состояние сессии
func (rs *RestServer) handleState(c *gin.Context) {
	view, err := rs.game.View(c.Request.Context())
	rs.respondView(c, view, err)
}

// handleMove перемещает игрока
func (rs *RestServer) handleMove(c *gin.Context) {
	var req MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		rs.badRequest(c, "Неверный формат запроса: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	switch {
	case req.Lat != nil && req.Lng != nil:
		p := vec.LatLng{Lat: *req.Lat, Lng: *req.Lng}
		if !p.IsValid() {
			rs.badRequest(c, "Недопустимые координаты")
			return
		}
		view, err := rs.game.MoveTo(ctx, p)
		rs.respondView(c, view, err)
	case req.DI != nil || req.DJ != nil:
		di, dj := intOrZero(req.DI), intOrZero(req.DJ)
		view, err := rs.game.Move(ctx, di, dj)
		rs.respondView(c, view, err)
	default:
		rs.badRequest(c, "Нужны di/dj или lat/lng")
	}
}

// handleCollect забирает монету из тайника
func (rs *RestServer) handleCollect(c *gin.Context) {
	i, j, ok := rs.cellParams(c)
	if !ok {
		return
	}
	view, err := rs.game.Collect(c.Request.Context(), i, j)
	rs.respondView(c, view, err)
}

// handleDeposit кладёт монету в тайник
func (rs *RestServer) handleDeposit(c *gin.Context) {
	i, j, ok := rs.cellParams(c)
	if !ok {
		return
	}
	view, err := rs.game.Deposit(c.Request.Context(), i, j)
	rs.respondView(c, view, err)
}

// handleReset сбрасывает сессию
func (rs *RestServer) handleReset(c *gin.Context) {
	view, err := rs.game.Reset(c.Request.Context())
	rs.respondView(c, view, err)
}

// handleLive переключает живую геолокацию
func (rs *RestServer) handleLive(c *gin.Context) {
	live, err := rs.game.ToggleLiveLocation(c.Request.Context())
	if err != nil {
		c.Error(err)
		c.JSON(statusForError(err), GenericResponse{
			Success: false,
			Message: err.Error(),
			Data:    gin.H{"live": live},
		})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: fmt.Sprintf("live location: %v", live),
		Data:    gin.H{"live": live},
	})
}

// handleServerInfo возвращает информацию о процессе
func (rs *RestServer) handleServerInfo(c *gin.Context) {
	memoryMB, _ := rs.metrics.GetMemoryUsage()
	cpuPercent, _ := rs.metrics.GetCPUUsage()

	info := map[string]interface{}{
		"name":        "geocoin",
		"status":      "running",
		"uptime":      rs.metrics.GetUptime(),
		"memory_mb":   fmt.Sprintf("%.1f", memoryMB),
		"cpu_percent": fmt.Sprintf("%.1f", cpuPercent),
		"runtime":     rs.metrics.GetDetailedMemoryStats(),
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Информация о сервере",
		Data:    info,
	})
}

// handleHealth проверка состояния сервера
func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

// respondView отправляет View или ошибку
func (rs *RestServer) respondView(c *gin.Context, view session.View, err error) {
	if err != nil {
		c.Error(err)
		c.JSON(statusForError(err), GenericResponse{
			Success: false,
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: view.Status,
		Data:    view,
	})
}

// cellParams разбирает :i и :j
func (rs *RestServer) cellParams(c *gin.Context) (int, int, bool) {
	i, errI := strconv.Atoi(c.Param("i"))
	j, errJ := strconv.Atoi(c.Param("j"))
	if errI != nil || errJ != nil {
		rs.badRequest(c, "Индексы клетки должны быть целыми числами")
		return 0, 0, false
	}
	return i, j, true
}

func (rs *RestServer) badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, GenericResponse{
		Success: false,
		Message: message,
	})
}

// statusForError сопоставляет ошибки сессии HTTP-статусам
func statusForError(err error) int {
	switch {
	case errors.Is(err, session.ErrCacheNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrLocationUnavailable),
		errors.Is(err, session.ErrClosed),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

// Start запускает REST сервер и блокируется до Stop
func (rs *RestServer) Start() error {
	rs.httpServer = &http.Server{
		Addr:              rs.port,
		Handler:           rs.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	rs.logger.Info("🌐 REST API listening on %s", rs.port)
	if err := rs.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("rest server: %w", err)
	}
	return nil
}

// Stop выполняет graceful shutdown
func (rs *RestServer) Stop(ctx context.Context) error {
	if rs.httpServer == nil {
		return nil
	}
	if err := rs.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("rest server shutdown: %w", err)
	}
	rs.logger.Info("🛑 REST API stopped")
	return nil
}
