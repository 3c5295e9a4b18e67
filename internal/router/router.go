package router

import (
	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/config"
	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/handler"
	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/infra"
	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/middleware"
	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/remote"
	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/repository"
	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/service"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps are the shared components the router wires into handlers. They are
// built once in main so the sync loop and the HTTP surface share the same
// service instances.
type Deps struct {
	Config       *config.Config
	DB           *gorm.DB
	API          remote.Client
	Breaker      *infra.CircuitBreaker
	Verification service.VerificationService
	Sync         service.SyncService
	Enrollment   service.EnrollmentService
	Users        repository.UserRepository
}

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/remote client
func New(d Deps) *gin.Engine {
	if d.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.ErrorHandler())

	verifyH := handler.NewVerifyHandler(d.Verification)
	syncH := handler.NewSyncHandler(d.Sync)
	usersH := handler.NewUsersHandler(d.Enrollment, d.Users, d.Config.SupervisorPINHash)

	// Public
	r.GET("/health", handler.Health(d.DB, d.API, d.Breaker))

	// Local UI process only; guarded by the shared key
	v1 := r.Group("/v1", middleware.APIKeyAuth(d.Config.LocalAPIKey))
	{
		v1.POST("/verify", verifyH.Verify)
		v1.POST("/verify/fallback", verifyH.VerifyWithFallback)

		v1.POST("/sync", syncH.Trigger)
		v1.GET("/sync/status", syncH.Status)

		v1.POST("/users", usersH.Enroll)
		v1.GET("/users", usersH.List)
		v1.DELETE("/users/:id", usersH.Deactivate)
	}

	return r
}
