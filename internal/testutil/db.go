// Package testutil builds throwaway databases and fixtures for tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/Mahaan-Amr/hs6tools-sub003/internal/domain"
	"github.com/Mahaan-Amr/hs6tools-sub003/internal/infra/database"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB opens a private in-memory SQLite database with the full schema.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func SeedProduct(t testing.TB, db *gorm.DB, name string, price int64, stock int) *domain.Product {
	t.Helper()
	p := &domain.Product{
		Name:          name,
		SKU:           "SKU-" + uuid.NewString()[:8],
		Price:         price,
		StockQuantity: stock,
		IsInStock:     stock > 0,
		IsActive:      true,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func SeedVariant(t testing.TB, db *gorm.DB, productID uint64, name string, price *int64, stock int) *domain.ProductVariant {
	t.Helper()
	v := &domain.ProductVariant{
		ProductID:     productID,
		Name:          name,
		SKU:           "VAR-" + uuid.NewString()[:8],
		Price:         price,
		StockQuantity: stock,
		IsInStock:     stock > 0,
		IsActive:      true,
	}
	require.NoError(t, db.Create(v).Error)
	return v
}

func SeedCoupon(t testing.TB, db *gorm.DB, c *domain.Coupon) *domain.Coupon {
	t.Helper()
	if c.ApplicableTo == "" {
		c.ApplicableTo = domain.ScopeAll
	}
	if c.DiscountType == "" {
		c.DiscountType = domain.DiscountFixedAmount
	}
	require.NoError(t, db.Create(c).Error)
	if !c.IsActive {
		// gorm skips zero values that carry a column default on insert
		require.NoError(t, db.Model(c).Update("is_active", false).Error)
	}
	return c
}

func StockOf(t testing.TB, db *gorm.DB, productID uint64) int {
	t.Helper()
	var p domain.Product
	require.NoError(t, db.First(&p, productID).Error)
	return p.StockQuantity
}

func VariantStockOf(t testing.TB, db *gorm.DB, variantID uint64) int {
	t.Helper()
	var v domain.ProductVariant
	require.NoError(t, db.First(&v, variantID).Error)
	return v.StockQuantity
}

func CouponUsage(t testing.TB, db *gorm.DB, couponID uint64) int {
	t.Helper()
	var c domain.Coupon
	require.NoError(t, db.First(&c, couponID).Error)
	return c.UsageCount
}

func Ptr[T any](v T) *T {
	return &v
}

// Past returns a UTC instant d before now.
func Past(d time.Duration) *time.Time {
	t := time.Now().UTC().Add(-d)
	return &t
}
