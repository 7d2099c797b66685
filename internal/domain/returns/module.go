package returns

import (
	"groupbuy_backend/internal/domain/order"
	"groupbuy_backend/internal/domain/returns/handler"
	"groupbuy_backend/internal/domain/returns/repository"
	"groupbuy_backend/internal/domain/returns/service"
	"groupbuy_backend/internal/pkg/middleware"
	"groupbuy_backend/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// ReturnsModule wires the refund workflow on top of the order service.
type ReturnsModule struct{}

func init() {
	registry.Register(&ReturnsModule{})
}

func (m *ReturnsModule) Name() string {
	return "returns"
}

// Priority runs after order: completing a return issues the refund through
// the order service.
func (m *ReturnsModule) Priority() int {
	return 40
}

func (m *ReturnsModule) Init(ctx *registry.ModuleContext) error {
	repo := repository.NewReturnRepository(ctx.DB)
	svc := service.NewReturnService(repo, order.Service())
	h := handler.NewReturnHandler(svc)

	setupRoutes(ctx.Router, h)
	return nil
}

func setupRoutes(r *gin.Engine, h *handler.ReturnHandler) {
	g := r.Group("/returns")
	g.Use(middleware.AuthMiddleware())
	{
		g.POST("", h.CreateReturn)
		g.GET("/:id", h.GetReturn)
	}

	admin := r.Group("/returns")
	admin.Use(middleware.AuthMiddleware(), middleware.AdminMiddleware())
	{
		admin.GET("", h.ListPendingReturns)
		admin.POST("/:id/approve", h.ApproveReturn)
		admin.POST("/:id/reject", h.RejectReturn)
		admin.POST("/:id/awaiting", h.MarkAwaitingItem)
		admin.POST("/:id/complete", h.CompleteReturn)
	}

	my := r.Group("/my")
	my.Use(middleware.AuthMiddleware())
	my.GET("/returns", h.ListMyReturns)
}
