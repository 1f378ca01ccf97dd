package route

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bassista/go_dbproxy/internal/api/controller"
	"github.com/bassista/go_dbproxy/internal/api/middleware"
	"github.com/bassista/go_dbproxy/internal/app"
	"github.com/bassista/go_dbproxy/internal/cache"
	"github.com/bassista/go_dbproxy/internal/proxy"
)

// SetupRoutes registers every public endpoint on r.
func SetupRoutes(r *gin.Engine, appCtx *app.App) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "UP",
		})
	})

	publicRouter := r.Group("")
	publicRouter.Use(middleware.CORSMiddleware(appCtx.Config.Server.CORSAllowedOrigins))
	publicRouter.Use(middleware.RequestTimeout(middleware.TimeoutConfig{
		Default: appCtx.Config.Server.RequestTimeout,
		Routes:  map[string]time.Duration{"/persist": appCtx.Config.Server.PersistTimeout},
	}))

	NewRecordRouter(publicRouter, appCtx.Cache, appCtx.Repo.Proxy())
	NewProxyRouter(publicRouter, appCtx)
}

// NewRecordRouter registers record CRUD endpoints and the sealed record view.
func NewRecordRouter(group *gin.RouterGroup, store cache.RecordStore, p *proxy.DatabaseProxy) {
	controller.NewRecordController(store).RegisterCrudRoutes(group, "record")
	group.GET("/record/:id/sealed", controller.NewSealedRecordController(store, p).Get)
}

// NewProxyRouter registers proxy status and persistence endpoints.
func NewProxyRouter(group *gin.RouterGroup, appCtx *app.App) {
	pc := controller.NewProxyController(appCtx.Repo.Proxy(), appCtx)

	group.GET("proxy", pc.Status)
	group.POST("persist", pc.Persist)
}
