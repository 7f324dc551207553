package impact

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/affisync/internal/constants"
	"github.com/affisync/internal/models"
	"github.com/affisync/internal/network"
)

func testConfig(baseURL string) *Config {
	return &Config{
		AccountSID:    "IRsid123",
		AuthToken:     "token",
		ProgramID:     "1234",
		WebhookSecret: "hook-secret",
		BaseURL:       baseURL,
	}
}

func fastRetry() *network.RetryPolicy {
	return &network.RetryPolicy{MaxRetries: 0, BaseDelay: time.Millisecond}
}

// fakeClock 立即返回的时钟，限流等待不真实 sleep
type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.now = c.now.Add(d)
	return nil
}

func testOptions() Options {
	return Options{Retry: fastRetry(), Clock: &fakeClock{now: time.Now()}}
}

func TestParseConfigMissingFields(t *testing.T) {
	cases := []struct {
		name        string
		credentials models.JSON
	}{
		{"missing account_sid", models.JSON{"auth_token": "t"}},
		{"missing auth_token", models.JSON{"account_sid": "sid"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := ParseConfig(&models.NetworkConfig{Credentials: c.credentials})
			if err == nil {
				t.Fatal("expected config error")
			}
		})
	}
}

func TestStatusFromNative(t *testing.T) {
	cases := map[string]string{
		"PENDING_APPROVAL": constants.ConversionStatusPending,
		"APPROVED":         constants.ConversionStatusConfirmed,
		"REJECTED":         constants.ConversionStatusCancelled,
		"REVERSED":         constants.ConversionStatusReversed,
		"approved":         constants.ConversionStatusConfirmed,
		"SOMETHING_NEW":    constants.ConversionStatusPending,
	}
	for native, want := range cases {
		if got := statusFromNative(native); got != want {
			t.Errorf("statusFromNative(%s) = %s, want %s", native, got, want)
		}
	}
}

func TestAuthenticateSendsBasicAuth(t *testing.T) {
	var gotUser, gotPass string
	var gotOK bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, gotOK = r.BasicAuth()
		w.Write([]byte(`{"Campaigns":[]}`))
	}))
	defer server.Close()

	adapter := New(testConfig(server.URL), "tenant-1", nil, testOptions())
	if err := adapter.Authenticate(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !gotOK || gotUser != "IRsid123" || gotPass != "token" {
		t.Errorf("basic auth = %s/%s (%v), want IRsid123/token", gotUser, gotPass, gotOK)
	}
}

func TestGenerateAffiliateLinkSubID(t *testing.T) {
	adapter := New(testConfig(""), "tenant-1", nil, Options{})
	link, err := adapter.GenerateAffiliateLink(context.Background(), "item-9", map[string]string{"sub_id": "sub-7"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(link, "https://goto.impact.com/c/IRsid123/1234/item-9") {
		t.Errorf("unexpected link prefix: %s", link)
	}
	parsed, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	if parsed.Query().Get("subId1") != "sub-7" {
		t.Errorf("subId1 = %s, want sub-7", parsed.Query().Get("subId1"))
	}
}

func TestTrackClick(t *testing.T) {
	var gotPath, gotClickID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		r.ParseForm()
		gotClickID = r.PostForm.Get("ClickId")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	adapter := New(testConfig(server.URL), "tenant-1", nil, testOptions())
	err := adapter.TrackClick(context.Background(), network.ClickInput{
		NetworkProductID: "item-9",
		ClickID:          "click-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/Mediapartners/IRsid123/Clicks" {
		t.Errorf("path = %s, want /Mediapartners/IRsid123/Clicks", gotPath)
	}
	if gotClickID != "click-1" {
		t.Errorf("ClickId = %s, want click-1", gotClickID)
	}
}

func TestSyncProductsPaginationByTotalPages(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		switch r.URL.Query().Get("Page") {
		case "1":
			w.Write([]byte(`{"Items":[{"Id":"i1","CampaignId":"c1","Name":"Widget","CurrentPrice":"19.99","Currency":"USD"}],"TotalResults":2,"TotalPages":2,"Page":1}`))
		default:
			w.Write([]byte(`{"Items":[{"Id":"i2","CampaignId":"c1","Name":"Gadget","CurrentPrice":"9.99","Currency":"USD"}],"TotalResults":2,"TotalPages":2,"Page":2}`))
		}
	}))
	defer server.Close()

	adapter := New(testConfig(server.URL), "tenant-1", nil, testOptions())
	var synced []models.AffiliateProduct
	op, err := adapter.SyncProducts(context.Background(), network.SyncOptions{FullSync: true},
		func(ctx context.Context, products []models.AffiliateProduct) error {
			synced = append(synced, products...)
			return nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if requests != 2 {
		t.Errorf("requests = %d, want 2", requests)
	}
	if op.RecordsSucceeded != 2 {
		t.Errorf("succeeded = %d, want 2", op.RecordsSucceeded)
	}
	if len(synced) != 2 || synced[0].ID != "impact-i1" || synced[1].ID != "impact-i2" {
		t.Errorf("unexpected synced products: %+v", synced)
	}
}

func TestSyncProductsPageFailureKeepsCounts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("Page") == "1" {
			w.Write([]byte(`{"Items":[{"Id":"i1","Name":"Widget","CurrentPrice":"19.99"}],"TotalResults":2,"TotalPages":2,"Page":1}`))
			return
		}
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	adapter := New(testConfig(server.URL), "tenant-1", nil, testOptions())
	op, err := adapter.SyncProducts(context.Background(), network.SyncOptions{FullSync: true}, nil)
	if err == nil {
		t.Fatal("expected sync error")
	}
	if op.Status != constants.SyncStatusError {
		t.Errorf("status = %s, want %s", op.Status, constants.SyncStatusError)
	}
	if op.RecordsSucceeded != 1 {
		t.Errorf("succeeded = %d, want 1 (earlier pages retained)", op.RecordsSucceeded)
	}
}

func TestSyncProductsCancelledAtPageBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	adapter := New(testConfig("http://127.0.0.1:0"), "tenant-1", nil, testOptions())
	op, err := adapter.SyncProducts(ctx, network.SyncOptions{}, nil)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if network.ErrorCode(err) != constants.ErrCodeCancelled {
		t.Errorf("error code = %s, want %s", network.ErrorCode(err), constants.ErrCodeCancelled)
	}
	if op.Status != constants.SyncStatusError {
		t.Errorf("status = %s, want %s", op.Status, constants.SyncStatusError)
	}
}

func TestGetConversionsStatusMapping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Actions":[
			{"Id":"a1","State":"PENDING_APPROVAL","Amount":"100.00","Payout":"8.00","Currency":"USD"},
			{"Id":"a2","State":"APPROVED","Amount":"50.00","Payout":"4.00","Currency":"USD"},
			{"Id":"a3","State":"REVERSED","Amount":"10.00","Payout":"1.00","Currency":"USD"}
		]}`))
	}))
	defer server.Close()

	adapter := New(testConfig(server.URL), "tenant-1", nil, testOptions())
	conversions, err := adapter.GetConversions(context.Background(), network.ConversionQuery{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{
		constants.ConversionStatusPending,
		constants.ConversionStatusConfirmed,
		constants.ConversionStatusReversed,
	}
	if len(conversions) != len(want) {
		t.Fatalf("got %d conversions, want %d", len(conversions), len(want))
	}
	for i, status := range want {
		if conversions[i].Status != status {
			t.Errorf("conversion %d status = %s, want %s", i, conversions[i].Status, status)
		}
	}
}

func TestParseWebhookConversion(t *testing.T) {
	adapter := New(testConfig(""), "tenant-1", nil, Options{})
	body := []byte(`{"EventType":"action.created","ActionId":"a1","State":"PENDING_APPROVAL","CampaignId":"c1","Oid":"o1","Amount":"100.00","Payout":"8.00","Currency":"USD","SubId1":"sub-7"}`)
	payload, err := adapter.ParseWebhook(body, "application/json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload.EventType != constants.WebhookEventConversionCreated {
		t.Errorf("event = %s, want %s", payload.EventType, constants.WebhookEventConversionCreated)
	}
	if network.DataString(payload.Data, network.DataKeyStatus) != constants.ConversionStatusPending {
		t.Errorf("status = %s, want pending", network.DataString(payload.Data, network.DataKeyStatus))
	}
}

func TestParseWebhookItemUpdated(t *testing.T) {
	adapter := New(testConfig(""), "tenant-1", nil, Options{})
	payload, err := adapter.ParseWebhook([]byte(`{"EventType":"item.updated","ItemId":"i1"}`), "application/json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload.EventType != constants.WebhookEventProductUpdated {
		t.Errorf("event = %s, want %s", payload.EventType, constants.WebhookEventProductUpdated)
	}
	if network.DataString(payload.Data, network.DataKeyProductID) != "i1" {
		t.Errorf("product id = %s, want i1", network.DataString(payload.Data, network.DataKeyProductID))
	}
}

func TestValidateWebhookSignature(t *testing.T) {
	adapter := New(testConfig(""), "tenant-1", nil, Options{})
	body := []byte(`{"ActionId":"a1"}`)
	if !adapter.ValidateWebhookSignature(body, network.SignPayload("hook-secret", body)) {
		t.Error("valid signature rejected")
	}
	if adapter.ValidateWebhookSignature(body, network.SignPayload("wrong", body)) {
		t.Error("signature with wrong secret accepted")
	}
}
