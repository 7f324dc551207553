package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/affisync/internal/constants"
	"github.com/affisync/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupProductRepositoryTest(t *testing.T) (*GormProductRepository, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:product_repo_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.AffiliateProduct{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return NewProductRepository(db), db
}

func testProduct(networkProductID string) models.AffiliateProduct {
	return models.AffiliateProduct{
		TenantID:         "tenant-1",
		NetworkType:      constants.NetworkTypeShareASale,
		NetworkProductID: networkProductID,
		MerchantID:       "77",
		Title:            "Widget",
		PriceAmount:      models.NewMoneyFromString("19.99"),
		PriceCurrency:    "USD",
		InStock:          true,
		IsActive:         true,
		LastUpdatedAt:    time.Now().UTC().Truncate(time.Second),
	}
}

func TestProductUpsertBatchIdempotent(t *testing.T) {
	repo, db := setupProductRepositoryTest(t)

	batch := []models.AffiliateProduct{testProduct("p1"), testProduct("p2")}
	if err := repo.UpsertBatch(batch); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}

	// 再跑一遍同步，同 ID 覆盖更新而非新增
	again := []models.AffiliateProduct{testProduct("p1"), testProduct("p2")}
	again[0].Title = "Widget v2"
	if err := repo.UpsertBatch(again); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	var count int64
	db.Model(&models.AffiliateProduct{}).Count(&count)
	if count != 2 {
		t.Errorf("rows = %d, want 2", count)
	}

	stored, err := repo.GetByID("shareasale-p1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Title != "Widget v2" {
		t.Errorf("title = %s, want Widget v2", stored.Title)
	}
}

func TestProductUpsertBatchNormalizesIDs(t *testing.T) {
	repo, _ := setupProductRepositoryTest(t)

	product := testProduct("p9")
	product.ID = "stale-id"
	if err := repo.UpsertBatch([]models.AffiliateProduct{product}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if _, err := repo.GetByID("shareasale-p9"); err != nil {
		t.Errorf("canonical id lookup failed: %v", err)
	}
}

func TestProductTouchByNetworkProductID(t *testing.T) {
	repo, _ := setupProductRepositoryTest(t)

	product := testProduct("p1")
	product.LastUpdatedAt = time.Now().Add(-24 * time.Hour)
	if err := repo.UpsertBatch([]models.AffiliateProduct{product}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	at := time.Now().UTC().Truncate(time.Second)
	err := repo.TouchByNetworkProductID("tenant-1", constants.NetworkTypeShareASale, "p1", at)
	if err != nil {
		t.Fatalf("touch failed: %v", err)
	}

	stored, err := repo.GetByID("shareasale-p1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !stored.LastUpdatedAt.Equal(at) {
		t.Errorf("last_updated_at = %v, want %v", stored.LastUpdatedAt, at)
	}
}

func TestProductDeactivateStale(t *testing.T) {
	repo, _ := setupProductRepositoryTest(t)

	fresh := testProduct("fresh")
	stale := testProduct("stale")
	stale.LastUpdatedAt = time.Now().Add(-48 * time.Hour)
	if err := repo.UpsertBatch([]models.AffiliateProduct{fresh, stale}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	affected, err := repo.DeactivateStale("tenant-1", constants.NetworkTypeShareASale, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}
	if affected != 1 {
		t.Errorf("affected = %d, want 1", affected)
	}

	products, total, err := repo.List(ProductListFilter{TenantID: "tenant-1", OnlyActive: true})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 1 || products[0].NetworkProductID != "fresh" {
		t.Errorf("active products = %d (%v), want only fresh", total, products)
	}
}
