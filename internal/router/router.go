package router

import (
	"time"

	"nominamx/internal/config"
	"nominamx/internal/handler"
	"nominamx/internal/infra"
	"nominamx/internal/middleware"
	"nominamx/internal/model"
	"nominamx/internal/repository"
	"nominamx/internal/service"
	"nominamx/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the externally-constructed dependencies shared between the HTTP
// surface and the worker pool.
type Deps struct {
	Cfg   *config.Config
	DB    *gorm.DB
	RDB   *redis.Client
	CB    *infra.CircuitBreaker
	Store infra.FileStore
}

// New wires all dependencies and returns the configured Gin engine plus the
// worker handlers for the async queues.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis/FileStore
func New(d Deps) (*gin.Engine, worker.WorkerHandlers) {
	cfg := d.Cfg
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Infrastructure ───────────────────────────────────────────────────────
	pacClient := infra.NewPACClient(cfg.PACBridgeURL, cfg.PACUsuario, cfg.PACPassword)
	mailer := infra.NewMailer(cfg)

	// ── Repositories ─────────────────────────────────────────────────────────
	usuarioRepo := repository.NewUsuarioRepository(d.DB)
	reciboRepo := repository.NewReciboRepository(d.DB)
	snapshotRepo := repository.NewSnapshotRepository(d.DB)
	documentoRepo := repository.NewDocumentoRepository(d.DB)
	autorizacionRepo := repository.NewAutorizacionRepository(d.DB)
	periodoRepo := repository.NewPeriodoRepository(d.DB)
	empleadoRepo := repository.NewEmpleadoRepository(d.DB)
	empresaRepo := repository.NewEmpresaRepository(d.DB)
	bitacoraRepo := repository.NewBitacoraRepository(d.DB)

	// ── Services ─────────────────────────────────────────────────────────────
	authSvc := service.NewAuthService(usuarioRepo, cfg)
	ledgerSvc := service.NewLedgerService(reciboRepo, snapshotRepo, bitacoraRepo)
	documentoSvc := service.NewDocumentoService(documentoRepo, reciboRepo, bitacoraRepo, d.Store)
	autorizacionSvc := service.NewAutorizacionService(autorizacionRepo, periodoRepo, reciboRepo, usuarioRepo, bitacoraRepo)
	preparacionSvc := service.NewPreparacionService(cfg, periodoRepo, reciboRepo, autorizacionRepo)

	// Worker dispatcher — injected into services that enqueue async jobs
	dispatcher := worker.NewDispatcher(d.RDB)
	timbradoSvc := service.NewTimbradoService(preparacionSvc, reciboRepo, autorizacionRepo, bitacoraRepo, dispatcher)

	// ── Worker handlers ──────────────────────────────────────────────────────
	timbradoWorker := worker.NewTimbradoWorker(
		pacClient, d.CB,
		reciboRepo, periodoRepo, empleadoRepo, empresaRepo, bitacoraRepo,
		documentoSvc, dispatcher, d.RDB,
	)
	handlers := worker.WorkerHandlers{
		Timbrado: timbradoWorker,
		Email:    worker.NewEmailWorker(mailer, documentoSvc),
	}

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(authSvc)
	usuariosH := handler.NewUsuariosHandler(authSvc)
	recibosH := handler.NewRecibosHandler(ledgerSvc)
	documentosH := handler.NewDocumentosHandler(documentoSvc)
	timbradoH := handler.NewTimbradoHandler(autorizacionSvc, preparacionSvc, timbradoSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(d.DB, d.RDB, d.CB))

	// Auth (public)
	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", middleware.LoginRateLimiter(), authH.Login)
		auth.POST("/refresh", authH.Refresh)
	}

	// Protected routes
	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	todos := middleware.RequireRole(model.RolNominista, model.RolSupervisor, model.RolAdministrador)
	supervisores := middleware.RequireRole(model.RolSupervisor, model.RolAdministrador)

	v1 := r.Group("/v1", jwtMW)
	{
		// Recibos — ledger operations. Nominista prepares, everyone reads.
		v1.POST("/recibos", todos, recibosH.CrearRecibo)
		v1.GET("/recibos/activo", todos, recibosH.ObtenerActivo)
		v1.GET("/recibos/:id", todos, recibosH.ObtenerRecibo)
		v1.GET("/recibos/:id/puede-modificar", todos, recibosH.PuedeModificar)
		v1.POST("/recibos/:id/recalcular", todos, recibosH.Recalcular)
		v1.GET("/recibos/:id/versiones", todos, recibosH.ObtenerCadena)
		v1.GET("/recibos/:id/comparar", todos, recibosH.CompararVersiones)
		v1.POST("/recibos/:id/timbrar", supervisores, timbradoH.TimbrarRecibo)

		// Documentos fiscales — content-addressed store
		v1.POST("/recibos/:id/documentos", todos, documentosH.Almacenar)
		v1.GET("/documentos/:id", todos, documentosH.Obtener)
		v1.GET("/documentos/:id/verificar", todos, documentosH.VerificarIntegridad)
		v1.DELETE("/documentos/:id", supervisores, documentosH.Eliminar)

		// Periodos — stamping gate, readiness, bulk stamping
		v1.GET("/periodos/:id/puede-autorizar", todos, timbradoH.PuedeAutorizar)
		v1.POST("/periodos/:id/autorizar-timbrado", supervisores, timbradoH.Autorizar)
		v1.GET("/periodos/:id/autorizacion", todos, timbradoH.ObtenerAutorizacion)
		v1.DELETE("/periodos/:id/autorizacion", supervisores, timbradoH.Revocar)
		v1.GET("/periodos/:id/autorizaciones", todos, timbradoH.HistorialAutorizaciones)
		v1.GET("/periodos/:id/puede-timbrar", todos, timbradoH.PuedeTimbrar)
		v1.POST("/periodos/:id/timbrar", supervisores, timbradoH.TimbrarPeriodo)
		v1.GET("/periodos/:id/documentos/verificar", todos, documentosH.VerificarPeriodo)

		// Usuarios — administrador only
		usuarios := v1.Group("/usuarios", middleware.RequireRole(model.RolAdministrador))
		{
			usuarios.POST("", usuariosH.Crear)
			usuarios.GET("", usuariosH.Listar)
			usuarios.PUT("/:id", usuariosH.Actualizar)
			usuarios.DELETE("/:id", usuariosH.Desactivar)
			usuarios.PATCH("/:id/reactivar", usuariosH.Reactivar)
		}
	}

	// Swagger UI — only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r, handlers
}
