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

func setupConversionRepositoryTest(t *testing.T) (*GormConversionRepository, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:conversion_repo_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Conversion{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return NewConversionRepository(db), db
}

func testConversion(status string) *models.Conversion {
	return &models.Conversion{
		TenantID:            "tenant-1",
		NetworkType:         constants.NetworkTypeCJ,
		NetworkConversionID: "conv-1",
		OrderID:             "o-1",
		OrderValue:          models.NewMoneyFromString("100.50"),
		Currency:            "USD",
		CommissionAmount:    models.NewMoneyFromString("8.04"),
		Status:              status,
		ConversionDate:      time.Now().UTC().Truncate(time.Second),
	}
}

func TestConversionUpsertCreatesThenUpdates(t *testing.T) {
	repo, db := setupConversionRepositoryTest(t)

	if err := repo.Upsert(testConversion(constants.ConversionStatusPending)); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	updated := testConversion(constants.ConversionStatusConfirmed)
	updated.CommissionAmount = models.NewMoneyFromString("9.00")
	if err := repo.Upsert(updated); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	var count int64
	db.Model(&models.Conversion{}).Count(&count)
	if count != 1 {
		t.Errorf("rows = %d, want 1 (upsert must not duplicate)", count)
	}

	stored, err := repo.GetByNetworkID("tenant-1", constants.NetworkTypeCJ, "conv-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Status != constants.ConversionStatusConfirmed {
		t.Errorf("status = %s, want confirmed", stored.Status)
	}
	if stored.CommissionAmount.String() != "9.00" {
		t.Errorf("commission = %s, want 9.00", stored.CommissionAmount.String())
	}
}

func TestConversionUpsertRejectsStatusRegression(t *testing.T) {
	repo, _ := setupConversionRepositoryTest(t)

	if err := repo.Upsert(testConversion(constants.ConversionStatusConfirmed)); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// confirmed 不允许回退到 pending，其余字段仍然刷新
	regress := testConversion(constants.ConversionStatusPending)
	regress.OrderValue = models.NewMoneyFromString("120.00")
	if err := repo.Upsert(regress); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	stored, err := repo.GetByNetworkID("tenant-1", constants.NetworkTypeCJ, "conv-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Status != constants.ConversionStatusConfirmed {
		t.Errorf("status = %s, want confirmed (no regression)", stored.Status)
	}
	if stored.OrderValue.String() != "120.00" {
		t.Errorf("order value = %s, want 120.00", stored.OrderValue.String())
	}
}

func TestConversionUpsertAllowsForwardTransitions(t *testing.T) {
	repo, _ := setupConversionRepositoryTest(t)

	steps := []string{
		constants.ConversionStatusPending,
		constants.ConversionStatusConfirmed,
		constants.ConversionStatusReversed,
	}
	for _, status := range steps {
		if err := repo.Upsert(testConversion(status)); err != nil {
			t.Fatalf("upsert %s failed: %v", status, err)
		}
	}

	stored, err := repo.GetByNetworkID("tenant-1", constants.NetworkTypeCJ, "conv-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Status != constants.ConversionStatusReversed {
		t.Errorf("status = %s, want reversed", stored.Status)
	}
}

func TestConversionUpsertBatchCountsSuccesses(t *testing.T) {
	repo, _ := setupConversionRepositoryTest(t)

	batch := []models.Conversion{
		*testConversion(constants.ConversionStatusPending),
		{
			TenantID:            "tenant-1",
			NetworkType:         constants.NetworkTypeCJ,
			NetworkConversionID: "conv-2",
			OrderValue:          models.NewMoneyFromString("10"),
			Currency:            "USD",
			Status:              constants.ConversionStatusPending,
			ConversionDate:      time.Now(),
		},
	}
	succeeded, err := repo.UpsertBatch(batch)
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}
	if succeeded != 2 {
		t.Errorf("succeeded = %d, want 2", succeeded)
	}
}

func TestConversionListFilters(t *testing.T) {
	repo, _ := setupConversionRepositoryTest(t)

	repo.Upsert(testConversion(constants.ConversionStatusPending))
	other := testConversion(constants.ConversionStatusConfirmed)
	other.NetworkConversionID = "conv-2"
	other.NetworkType = constants.NetworkTypeImpact
	repo.Upsert(other)

	conversions, total, err := repo.List(ConversionListFilter{
		TenantID:    "tenant-1",
		NetworkType: constants.NetworkTypeImpact,
	})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 1 || len(conversions) != 1 {
		t.Fatalf("total = %d len = %d, want 1/1", total, len(conversions))
	}
	if conversions[0].NetworkConversionID != "conv-2" {
		t.Errorf("conversion id = %s, want conv-2", conversions[0].NetworkConversionID)
	}
}
