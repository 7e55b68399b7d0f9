package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/kerm1977/plantilla1/internal/config"
	"github.com/kerm1977/plantilla1/internal/export"
	"github.com/kerm1977/plantilla1/internal/handler"
	"github.com/kerm1977/plantilla1/internal/middleware"
	"github.com/kerm1977/plantilla1/internal/model"
	"github.com/kerm1977/plantilla1/internal/policy"
	"github.com/kerm1977/plantilla1/internal/repository"
	"github.com/kerm1977/plantilla1/internal/service"
	"github.com/kerm1977/plantilla1/internal/session"
	"github.com/kerm1977/plantilla1/internal/upload"
)

// Deps are the infrastructure pieces built by the composition root.
type Deps struct {
	DB     *gorm.DB
	Redis  *redis.Client
	Store  session.Store
	Blobs  upload.Blob
	Mailer service.Mailer
}

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.MaxMultipartMemory = 32 << 20

	sessions := session.NewManager(deps.Store, session.Options{
		CookieName: cfg.SessionCookie,
		Lifetime:   time.Duration(cfg.SessionHours) * time.Hour,
		Remember:   time.Duration(cfg.RememberDays) * 24 * time.Hour,
		Secure:     cfg.IsProduction(),
	})

	// ── Repositories ─────────────────────────────────────────────────────────
	userRepo := repository.NewUserRepository(deps.DB)
	linkRepo := repository.NewOAuthLinkRepository(deps.DB)
	aboutUsRepo := repository.NewAboutUsRepository(deps.DB)
	versionRepo := repository.NewVersionRepository(deps.DB)
	fileRepo := repository.NewFileRepository(deps.DB)

	// ── Services ─────────────────────────────────────────────────────────────
	disk := upload.NewManager()
	renderer := export.NewRenderer()
	bootstrap := policy.NewBootstrap()

	authSvc := service.NewAuthService(userRepo, linkRepo, bootstrap, disk, deps.Mailer, cfg)
	userSvc := service.NewUserService(userRepo, fileRepo, disk, deps.Blobs, cfg)
	exportSvc := service.NewExportService(userRepo, renderer, cfg)
	aboutUsSvc := service.NewAboutUsService(aboutUsRepo, disk, renderer, cfg)
	versionSvc := service.NewVersionService(versionRepo)
	fileSvc := service.NewFileService(fileRepo, deps.Blobs, renderer, cfg)

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(authSvc, sessions)
	oauthH := handler.NewOAuthHandler(authSvc, handler.Providers(cfg), sessions, cfg.IsProduction())
	contactsH := handler.NewContactsHandler(userSvc, exportSvc, sessions)
	aboutUsH := handler.NewAboutUsHandler(aboutUsSvc, sessions)
	versionsH := handler.NewVersionsHandler(versionSvc, sessions)
	filesH := handler.NewFilesHandler(fileSvc, sessions)
	prefsH := handler.NewPreferencesHandler(userSvc, sessions)

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.CORSOrigins...))
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP
	r.Use(middleware.Sessions(sessions, authSvc.ObserveBootstrap))
	r.Use(middleware.Locale())

	// Avatars and logos are public; generic library files are only reachable
	// through /download_file with an ownership check.
	dirs := cfg.UploadDirs()
	r.Static("/uploads/avatars", dirs.Avatars)
	r.Static("/uploads/aboutus", dirs.AboutUs)

	anyone := middleware.RequireLogin(sessions)
	superuser := middleware.RequireRole(sessions, model.RoleSuperuser)
	staff := middleware.RequireRole(sessions, model.RoleSuperuser, model.RoleAdministrador)
	library := middleware.RequireRole(sessions, model.RoleSuperuser, model.RoleRegular)

	// ── Public ───────────────────────────────────────────────────────────────
	r.GET("/health", handler.Health(deps.DB, deps.Redis, versionSvc))

	r.POST("/register", middleware.RedirectIfLoggedIn(), authH.Register)
	r.POST("/login", middleware.LoginRateLimiter(), middleware.RedirectIfLoggedIn(), authH.Login)
	r.POST("/logout", authH.Logout)
	r.GET("/logout", authH.Logout)
	r.POST("/request_password_reset", middleware.LoginRateLimiter(), middleware.RedirectIfLoggedIn(), authH.RequestPasswordReset)
	r.GET("/reset_password/:token", middleware.RedirectIfLoggedIn(), authH.CheckResetToken)
	r.POST("/reset_password/:token", middleware.RedirectIfLoggedIn(), authH.ResetPassword)

	r.GET("/change_theme/:theme", prefsH.ChangeTheme)
	r.GET("/change_language/:lang", prefsH.ChangeLanguage)
	r.GET("/flashes", prefsH.Flashes)

	oauth := r.Group("/oauth")
	{
		oauth.GET("/login/:provider", oauthH.Login)
		oauth.GET("/authorize/:provider", oauthH.Authorize)
	}

	// ── Own profile ──────────────────────────────────────────────────────────
	perfil := r.Group("/perfil", anyone)
	{
		perfil.GET("", contactsH.Profile)
		perfil.PUT("", contactsH.UpdateProfile)
		perfil.POST("/editar", contactsH.UpdateProfile)
		perfil.POST("/change_password", authH.ChangePassword)
	}

	// ── Directory ────────────────────────────────────────────────────────────
	contactos := r.Group("/contactos", anyone)
	{
		contactos.GET("/ver_contactos", contactsH.List)
		contactos.GET("/ver_detalle/:id", contactsH.Detail)
		contactos.PUT("/editar_contacto/:id", contactsH.Update)
		contactos.POST("/editar_contacto/:id", contactsH.Update)
		contactos.POST("/eliminar_contacto/:id", superuser, contactsH.Delete)
		contactos.DELETE("/eliminar_contacto/:id", superuser, contactsH.Delete)
		contactos.POST("/admin/manage_roles/:id", superuser, contactsH.ChangeRole)
		contactos.GET("/exportar/:id/:format", staff, contactsH.Export)
		contactos.GET("/exportar_todos/:format", staff, contactsH.ExportAll)
	}

	// ── About us ─────────────────────────────────────────────────────────────
	r.GET("/aboutus/ver", aboutUsH.Show)
	aboutus := r.Group("/aboutus", staff)
	{
		aboutus.POST("/crear", aboutUsH.Save)
		aboutus.GET("/detalle/:id", aboutUsH.Get)
		aboutus.PUT("/editar/:id", aboutUsH.Update)
		aboutus.POST("/editar/:id", aboutUsH.Update)
		aboutus.POST("/eliminar/:id", aboutUsH.Delete)
		aboutus.DELETE("/eliminar/:id", aboutUsH.Delete)
		aboutus.GET("/exportar/:id/:format", aboutUsH.Export)
	}

	// ── Versions ─────────────────────────────────────────────────────────────
	version := r.Group("/version")
	{
		version.GET("/ver_versiones", versionsH.List)
		version.GET("/detalle_version/:id", versionsH.Detail)
		version.POST("/crear_version", superuser, versionsH.Create)
		version.PUT("/editar_version/:id", superuser, versionsH.Update)
		version.POST("/editar_version/:id", superuser, versionsH.Update)
		version.POST("/eliminar_version/:id", superuser, versionsH.Delete)
		version.DELETE("/eliminar_version/:id", superuser, versionsH.Delete)
	}

	// ── File library ─────────────────────────────────────────────────────────
	files := r.Group("", library)
	{
		files.GET("/files", filesH.List)
		files.POST("/files", filesH.Upload)
		files.POST("/upload_file", filesH.Upload)
		files.GET("/download_file/:id", filesH.Download)
		files.POST("/delete_file/:id", filesH.Delete)
		files.DELETE("/delete_file/:id", filesH.Delete)
		files.GET("/export_file/:id/:format", filesH.Export)
	}

	return r
}
