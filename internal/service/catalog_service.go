package service

import (
	"context"
	"errors"

	"github.com/sakashimaa/go-storefront/internal/domain"
	"github.com/sakashimaa/go-storefront/internal/repository"
)

// CatalogService serves product-page reads. The catalog itself is an
// external collaborator; this core only reads it (and mutates stock via the
// checkout transaction).
type CatalogService interface {
	FindByID(ctx context.Context, id int64) (*domain.Product, error)
}

type catalogService struct {
	productRepo repository.ProductRepository
}

func NewCatalogService(productRepo repository.ProductRepository) CatalogService {
	return &catalogService{productRepo: productRepo}
}

func (s *catalogService) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, domain.NewError(domain.KindNotFound, "product not found")
		}

		return nil, err
	}

	return product, nil
}
