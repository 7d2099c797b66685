package catalog

import (
	"groupbuy_backend/internal/domain/catalog/handler"
	"groupbuy_backend/internal/domain/catalog/repository"
	"groupbuy_backend/internal/domain/catalog/service"
	"groupbuy_backend/internal/pkg/middleware"
	"groupbuy_backend/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// CatalogModule wires products and categories.
type CatalogModule struct{}

func init() {
	registry.Register(&CatalogModule{})
}

func (m *CatalogModule) Name() string {
	return "catalog"
}

func (m *CatalogModule) Priority() int {
	return 10
}

func (m *CatalogModule) Init(ctx *registry.ModuleContext) error {
	repo := repository.NewProductRepository(ctx.DB)
	svc := service.NewCatalogService(repo)
	h := handler.NewCatalogHandler(svc)

	setupRoutes(ctx.Router, h)
	return nil
}

func setupRoutes(r *gin.Engine, h *handler.CatalogHandler) {
	g := r.Group("/catalog")

	g.GET("/products", h.ListProducts)
	g.GET("/products/:id", h.GetProduct)
	g.GET("/categories", h.ListCategories)

	admin := g.Group("")
	admin.Use(middleware.AuthMiddleware(), middleware.AdminMiddleware())
	{
		admin.POST("/products", h.CreateProduct)
	}
}
