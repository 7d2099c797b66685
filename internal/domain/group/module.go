package group

import (
	catalogRepo "groupbuy_backend/internal/domain/catalog/repository"
	"groupbuy_backend/internal/domain/group/handler"
	"groupbuy_backend/internal/domain/group/repository"
	"groupbuy_backend/internal/domain/group/service"
	"groupbuy_backend/internal/domain/user"
	"groupbuy_backend/internal/pkg/middleware"
	"groupbuy_backend/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// GroupModule wires the buying-round lifecycle.
type GroupModule struct{}

// globalService is consumed by the order module: it registers itself as the
// settler and drives settlement from group outcomes.
var globalService service.GroupService

func init() {
	registry.Register(&GroupModule{})
}

func (m *GroupModule) Name() string {
	return "group"
}

// Priority sits between user/catalog and order: the order module needs the
// group service at init time.
func (m *GroupModule) Priority() int {
	return 20
}

func (m *GroupModule) Init(ctx *registry.ModuleContext) error {
	repo := repository.NewGroupRepository(ctx.DB)
	products := catalogRepo.NewProductRepository(ctx.DB)
	globalService = service.NewGroupService(repo, products, user.Service())
	h := handler.NewGroupHandler(globalService)

	setupRoutes(ctx.Router, h)
	return nil
}

// Service returns the shared group service. Valid after module init.
func Service() service.GroupService {
	return globalService
}

func setupRoutes(r *gin.Engine, h *handler.GroupHandler) {
	g := r.Group("/groups")

	g.GET("/:id", h.GetGroup)
	g.GET("", h.ListGroups)

	auth := g.Group("")
	auth.Use(middleware.AuthMiddleware())
	{
		auth.POST("", h.CreateGroup)
		auth.POST("/:id/join", h.JoinGroup)
		auth.POST("/:id/leave", h.LeaveGroup)
		auth.POST("/:id/cancel", h.CancelGroup)
	}

	// "/groups/my" would collide with the ":id" wildcard, so the
	// membership list lives under /my.
	my := r.Group("/my")
	my.Use(middleware.AuthMiddleware())
	my.GET("/groups", h.ListMyGroups)
}
