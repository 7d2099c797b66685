package service

import (
	"groupbuy_backend/internal/domain/catalog/model"
	"groupbuy_backend/internal/domain/catalog/repository"
)

// CatalogService manages products and categories. Tier validation happens
// here so a malformed tier list never reaches the pricing table.
type CatalogService interface {
	CreateProduct(p *model.Product) error
	GetProduct(id string) (*model.Product, error)
	ListProducts(categoryID string, page, limit int) ([]model.Product, int64, error)
	UpdateProduct(p *model.Product) error
	ListCategories() ([]model.Category, error)
}

type catalogService struct {
	repo repository.ProductRepository
}

func NewCatalogService(repo repository.ProductRepository) CatalogService {
	return &catalogService{repo: repo}
}

func (s *catalogService) CreateProduct(p *model.Product) error {
	if err := ValidateTiers(p.PriceTiers, p.BasePrice); err != nil {
		return err
	}
	return s.repo.Create(p)
}

func (s *catalogService) GetProduct(id string) (*model.Product, error) {
	return s.repo.GetByID(id)
}

func (s *catalogService) ListProducts(categoryID string, page, limit int) ([]model.Product, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	offset := (page - 1) * limit
	return s.repo.GetList(categoryID, offset, limit)
}

func (s *catalogService) UpdateProduct(p *model.Product) error {
	if err := ValidateTiers(p.PriceTiers, p.BasePrice); err != nil {
		return err
	}
	return s.repo.Update(p)
}

func (s *catalogService) ListCategories() ([]model.Category, error) {
	return s.repo.ListCategories()
}
