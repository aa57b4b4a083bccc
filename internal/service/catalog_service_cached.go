package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sakashimaa/go-storefront/internal/domain"
)

// cachedCatalogService is a read-through cache for product-page reads only.
// Cart and checkout paths never go through it: their reads must see live
// rows.
type cachedCatalogService struct {
	next        CatalogService
	redisClient *redis.Client
	cacheTTL    time.Duration
}

func NewCachedCatalogService(next CatalogService, redisClient *redis.Client) *cachedCatalogService {
	return &cachedCatalogService{
		next:        next,
		redisClient: redisClient,
		cacheTTL:    time.Minute * 10,
	}
}

func (s *cachedCatalogService) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	key := productKey(id)

	val, err := s.redisClient.Get(ctx, key).Result()
	if err == nil {
		var product domain.Product
		if err := json.Unmarshal([]byte(val), &product); err == nil {
			return &product, nil
		}
	}

	product, err := s.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(product); err == nil {
		s.redisClient.Set(ctx, key, data, s.cacheTTL)
	}

	return product, nil
}

// Invalidate drops cached entries after a committed stock change.
func (s *cachedCatalogService) Invalidate(ctx context.Context, productIDs ...int64) {
	for _, id := range productIDs {
		s.redisClient.Del(ctx, productKey(id))
	}
}

func productKey(id int64) string {
	return fmt.Sprintf("product:%d", id)
}
