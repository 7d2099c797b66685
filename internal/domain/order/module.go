package order

import (
	"fmt"

	"groupbuy_backend/internal/domain/group"
	groupRepo "groupbuy_backend/internal/domain/group/repository"
	"groupbuy_backend/internal/domain/order/gateway"
	"groupbuy_backend/internal/domain/order/handler"
	"groupbuy_backend/internal/domain/order/repository"
	"groupbuy_backend/internal/domain/order/service"
	"groupbuy_backend/internal/domain/user"
	"groupbuy_backend/internal/pkg/config"
	"groupbuy_backend/internal/pkg/delivery"
	"groupbuy_backend/internal/pkg/middleware"
	"groupbuy_backend/internal/pkg/registry"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

// OrderModule wires checkout, settlement and the payment webhook. It
// registers the order service as the group lifecycle's settler.
type OrderModule struct{}

var globalService service.OrderService

func init() {
	registry.Register(&OrderModule{})
}

func (m *OrderModule) Name() string {
	return "order"
}

// Priority runs after group: SetSettler needs the group service.
func (m *OrderModule) Priority() int {
	return 30
}

func (m *OrderModule) Init(ctx *registry.ModuleContext) error {
	sqlDB, err := ctx.DB.DB()
	if err != nil {
		return fmt.Errorf("order module: %w", err)
	}
	// The projections share the ORM's connection pool.
	sqlxDB := sqlx.NewDb(sqlDB, "postgres")

	yk := config.GlobalConfig.YooKassa
	gw := gateway.NewYooKassaGateway(yk.ShopID, yk.SecretKey)

	repo := repository.NewOrderRepository(ctx.DB)
	projections := repository.NewProjectionRepository(sqlxDB)
	groups := groupRepo.NewGroupRepository(ctx.DB)

	globalService = service.NewOrderService(
		repo, projections, groups, user.Service(),
		gw, delivery.NewFlatRateQuoter(), ctx.Redis,
	)
	group.Service().SetSettler(globalService)

	h := handler.NewOrderHandler(globalService)
	setupRoutes(ctx.Router, h)
	return nil
}

// Service returns the shared order service. Valid after module init.
func Service() service.OrderService {
	return globalService
}

func setupRoutes(r *gin.Engine, h *handler.OrderHandler) {
	g := r.Group("/orders")
	g.Use(middleware.AuthMiddleware())
	{
		g.POST("", h.Checkout)
		g.GET("/:id", h.GetOrder)
		g.POST("/:id/pay", h.RetryPayment)
		g.POST("/:id/cancel", h.CancelOrder)
	}

	admin := r.Group("/orders")
	admin.Use(middleware.AuthMiddleware(), middleware.AdminMiddleware())
	{
		admin.POST("/:id/ship", h.MarkShipped)
		admin.POST("/:id/deliver", h.MarkDelivered)
	}

	my := r.Group("/my")
	my.Use(middleware.AuthMiddleware())
	my.GET("/orders", h.ListMyOrders)

	// No auth: the gateway signs the payload instead.
	r.POST("/webhooks/payment", h.Webhook)
}
