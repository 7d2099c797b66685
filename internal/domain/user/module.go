package user

import (
	"groupbuy_backend/internal/domain/user/handler"
	"groupbuy_backend/internal/domain/user/repository"
	"groupbuy_backend/internal/domain/user/service"
	"groupbuy_backend/internal/pkg/middleware"
	"groupbuy_backend/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// UserModule wires profiles, addresses and the loyalty ladder.
type UserModule struct{}

// globalService lets later modules (group, order) reuse the user service
// for counters and chat-id resolution.
var globalService service.UserService

func init() {
	registry.Register(&UserModule{})
}

func (m *UserModule) Name() string {
	return "user"
}

func (m *UserModule) Priority() int {
	return 5
}

func (m *UserModule) Init(ctx *registry.ModuleContext) error {
	repo := repository.NewUserRepository(ctx.DB)
	globalService = service.NewUserService(repo)
	h := handler.NewUserHandler(globalService)

	setupRoutes(ctx.Router, h)
	return nil
}

// Service returns the shared user service. Valid after module init.
func Service() service.UserService {
	return globalService
}

func setupRoutes(r *gin.Engine, h *handler.UserHandler) {
	g := r.Group("/users")
	g.Use(middleware.AuthMiddleware())
	{
		g.GET("/me", h.GetProfile)
		g.GET("/me/stats", h.GetStats)
		g.GET("/me/addresses", h.ListAddresses)
		g.POST("/me/addresses", h.CreateAddress)
	}
}
