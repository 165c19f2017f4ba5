package repositories

import (
	"context"
	"time"

	"example.com/backstage/services/fridge/internal/cache"
	"example.com/backstage/services/fridge/internal/models"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ProductRepository provides read access to the product catalog
type ProductRepository struct {
	db         *gorm.DB // Write database
	readOnlyDB *gorm.DB // Read-only database
	cache      *cache.RedisCache
	ttl        time.Duration
}

// NewProductRepository creates a new product repository. cache may be nil.
func NewProductRepository(db *gorm.DB, readOnlyDB *gorm.DB, productCache *cache.RedisCache, ttl time.Duration) *ProductRepository {
	if readOnlyDB == nil {
		readOnlyDB = db
	}
	return &ProductRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
		cache:      productCache,
		ttl:        ttl,
	}
}

// Get returns a product by id, consulting the cache first
func (r *ProductRepository) Get(ctx context.Context, productID int) (*models.Product, error) {
	key := cache.GetProductCacheKey(productID)

	var product models.Product
	if r.cache.Enabled() {
		if err := r.cache.Get(ctx, key, &product); err == nil {
			return &product, nil
		}
	}

	err := r.readOnlyDB.WithContext(ctx).Where("product_id = ?", productID).First(&product).Error
	if err != nil {
		return nil, translate(err, "failed to get product")
	}

	if r.cache.Enabled() {
		if err := r.cache.Set(ctx, key, &product, r.ttl); err != nil {
			log.Warn().Err(err).Int("product_id", productID).Msg("Failed to cache product")
		}
	}

	return &product, nil
}

// Exists reports whether the product is in the catalog
func (r *ProductRepository) Exists(ctx context.Context, productID int) (bool, error) {
	_, err := r.Get(ctx, productID)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetMany returns the products with the given ids keyed by id
func (r *ProductRepository) GetMany(ctx context.Context, productIDs []int) (map[int]models.Product, error) {
	out := make(map[int]models.Product, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}

	var products []models.Product
	err := r.readOnlyDB.WithContext(ctx).Where("product_id IN ?", productIDs).Find(&products).Error
	if err != nil {
		return nil, translate(err, "failed to get products")
	}
	for _, p := range products {
		out[p.ProductID] = p
	}
	return out, nil
}

// List returns the whole catalog
func (r *ProductRepository) List(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := r.readOnlyDB.WithContext(ctx).Order("product_id").Find(&products).Error
	if err != nil {
		return nil, translate(err, "failed to list products")
	}
	return products, nil
}

// ListInStock returns catalog entries with a positive inventory quantity
func (r *ProductRepository) ListInStock(ctx context.Context) ([]models.StockedProduct, error) {
	var rows []models.StockedProduct
	err := r.readOnlyDB.WithContext(ctx).
		Table("products AS p").
		Select("p.product_id, p.name, p.price, i.item_id, i.quantity, i.expiry_date, i.last_updated").
		Joins("JOIN inventory AS i ON p.product_id = i.item_id").
		Where("i.quantity > ?", 0).
		Order("p.product_id").
		Scan(&rows).Error
	if err != nil {
		return nil, translate(err, "failed to list products in stock")
	}
	return rows, nil
}

// FindByName returns the products matching name exactly
func (r *ProductRepository) FindByName(ctx context.Context, name string) ([]models.Product, error) {
	var products []models.Product
	err := r.readOnlyDB.WithContext(ctx).Where("name = ?", name).Find(&products).Error
	if err != nil {
		return nil, translate(err, "failed to find products by name")
	}
	return products, nil
}
