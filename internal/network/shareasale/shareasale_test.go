package shareasale

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
		AffiliateID:   "12345",
		APIToken:      "token",
		APISecret:     "secret",
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
		{"missing affiliate_id", models.JSON{"api_token": "t", "api_secret": "s"}},
		{"missing api_token", models.JSON{"affiliate_id": "1", "api_secret": "s"}},
		{"missing api_secret", models.JSON{"affiliate_id": "1", "api_token": "t"}},
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

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig(&models.NetworkConfig{Credentials: models.JSON{
		"affiliate_id": "12345",
		"api_token":    "token",
		"api_secret":   "secret",
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.BaseURL != defaultBaseURL {
		t.Errorf("base url = %s, want %s", cfg.BaseURL, defaultBaseURL)
	}
	if cfg.TrackerURL != defaultTrackerURL {
		t.Errorf("tracker url = %s, want %s", cfg.TrackerURL, defaultTrackerURL)
	}
}

func TestSignRequest(t *testing.T) {
	got := signRequest("token", "Mon, 02 Jan 2006 15:04:05 GMT", "activity", "secret")
	if len(got) != 64 {
		t.Fatalf("signature length = %d, want 64", len(got))
	}
	if got != signRequest("token", "Mon, 02 Jan 2006 15:04:05 GMT", "activity", "secret") {
		t.Error("signature not deterministic")
	}
	if got == signRequest("token", "Mon, 02 Jan 2006 15:04:05 GMT", "getProducts", "secret") {
		t.Error("signature ignores action")
	}
}

func TestStatusFromNative(t *testing.T) {
	cases := map[string]string{
		"pending":  constants.ConversionStatusPending,
		"locked":   constants.ConversionStatusConfirmed,
		"paid":     constants.ConversionStatusConfirmed,
		"voided":   constants.ConversionStatusCancelled,
		"returned": constants.ConversionStatusReversed,
		"whatever": constants.ConversionStatusPending,
	}
	for native, want := range cases {
		if got := statusFromNative(native); got != want {
			t.Errorf("statusFromNative(%s) = %s, want %s", native, got, want)
		}
	}
}

func TestGenerateAffiliateLinkSubID(t *testing.T) {
	adapter := New(testConfig(""), "tenant-1", nil, Options{})
	link, err := adapter.GenerateAffiliateLink(context.Background(), "999", map[string]string{
		"sub_id":      "my-sub",
		"merchant_id": "777",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	parsed, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	query := parsed.Query()
	if query.Get("afftrack") != "my-sub" {
		t.Errorf("afftrack = %s, want my-sub", query.Get("afftrack"))
	}
	if query.Get("u") != "12345" {
		t.Errorf("u = %s, want 12345", query.Get("u"))
	}
	if query.Get("m") != "777" {
		t.Errorf("m = %s, want 777", query.Get("m"))
	}
}

func TestTrackClickUnsupported(t *testing.T) {
	adapter := New(testConfig(""), "tenant-1", nil, Options{})
	err := adapter.TrackClick(context.Background(), network.ClickInput{ClickID: "c1"})
	if err == nil {
		t.Fatal("expected capability error")
	}
	if network.ErrorCode(err) != constants.ErrCodeUnsupported {
		t.Errorf("error code = %s, want %s", network.ErrorCode(err), constants.ErrCodeUnsupported)
	}
	if network.IsRetryable(err) {
		t.Error("capability error must not be retryable")
	}
}

func TestSyncProductsPagination(t *testing.T) {
	pages := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-ShareASale-Authentication") == "" {
			t.Error("missing authentication header")
		}
		if r.URL.Query().Get("action") != "getProducts" {
			t.Errorf("action = %s, want getProducts", r.URL.Query().Get("action"))
		}
		pages++
		page := r.URL.Query().Get("page")
		switch page {
		case "1":
			w.Write([]byte(strings.ReplaceAll(`<shareasaleProducts total="2" page="1">
  <product><productID>p1</productID><merchantID>77</merchantID><name>Widget</name><price>19.99</price><commission>8</commission></product>
</shareasaleProducts>`, "\n", "")))
		default:
			w.Write([]byte(`<shareasaleProducts total="2" page="2"></shareasaleProducts>`))
		}
	}))
	defer server.Close()

	adapter := New(testConfig(server.URL), "tenant-1", nil, testOptions())
	var synced []models.AffiliateProduct
	op, err := adapter.SyncProducts(context.Background(), network.SyncOptions{FullSync: true, BatchSize: 1},
		func(ctx context.Context, products []models.AffiliateProduct) error {
			synced = append(synced, products...)
			return nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if op.Status != constants.SyncStatusCompleted {
		t.Errorf("status = %s, want %s", op.Status, constants.SyncStatusCompleted)
	}
	if op.RecordsSucceeded != 1 {
		t.Errorf("succeeded = %d, want 1", op.RecordsSucceeded)
	}
	if len(synced) != 1 {
		t.Fatalf("synced = %d products, want 1", len(synced))
	}
	if synced[0].ID != "shareasale-p1" {
		t.Errorf("product id = %s, want shareasale-p1", synced[0].ID)
	}
	if synced[0].PriceAmount.String() != "19.99" {
		t.Errorf("price = %s, want 19.99", synced[0].PriceAmount.String())
	}
}

func TestSyncProductsRemoteError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Error Code 4011 Service not available"))
	}))
	defer server.Close()

	adapter := New(testConfig(server.URL), "tenant-1", nil, testOptions())
	op, err := adapter.SyncProducts(context.Background(), network.SyncOptions{}, nil)
	if err == nil {
		t.Fatal("expected sync error")
	}
	if op.Status != constants.SyncStatusError {
		t.Errorf("status = %s, want %s", op.Status, constants.SyncStatusError)
	}
	if len(op.ErrorDetails) == 0 {
		t.Error("expected error details recorded")
	}
}

func TestAuthenticateInvalidToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Error Code 4001 Invalid Token"))
	}))
	defer server.Close()

	adapter := New(testConfig(server.URL), "tenant-1", nil, testOptions())
	err := adapter.Authenticate(context.Background())
	if err == nil {
		t.Fatal("expected auth error")
	}
	if network.ErrorCode(err) != constants.ErrCodeAuth {
		t.Errorf("error code = %s, want %s", network.ErrorCode(err), constants.ErrCodeAuth)
	}
	if network.IsRetryable(err) {
		t.Error("auth error must not be retryable")
	}
}

func TestGetConversionsStatusMapping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<shareasaleActivity>
  <activity><transID>t1</transID><transamount>100.00</transamount><commission>8.00</commission><voided>0</voided><locked>0</locked><paid>0</paid></activity>
  <activity><transID>t2</transID><transamount>50.00</transamount><commission>4.00</commission><locked>1</locked></activity>
  <activity><transID>t3</transID><transamount>10.00</transamount><commission>1.00</commission><voided>1</voided></activity>
</shareasaleActivity>`))
	}))
	defer server.Close()

	adapter := New(testConfig(server.URL), "tenant-1", nil, testOptions())
	from := time.Now().AddDate(0, 0, -7)
	conversions, err := adapter.GetConversions(context.Background(), network.ConversionQuery{DateFrom: &from})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(conversions) != 3 {
		t.Fatalf("got %d conversions, want 3", len(conversions))
	}
	want := []string{
		constants.ConversionStatusPending,
		constants.ConversionStatusConfirmed,
		constants.ConversionStatusCancelled,
	}
	for i, status := range want {
		if conversions[i].Status != status {
			t.Errorf("conversion %d status = %s, want %s", i, conversions[i].Status, status)
		}
	}
}

func TestParseWebhook(t *testing.T) {
	adapter := New(testConfig(""), "tenant-1", nil, Options{})
	body := url.Values{
		"transID":     {"t100"},
		"merchantID":  {"77"},
		"transamount": {"59.90"},
		"commission":  {"5.99"},
		"afftrack":    {"click-1"},
		"eventtype":   {"sale"},
	}.Encode()

	payload, err := adapter.ParseWebhook([]byte(body), "application/x-www-form-urlencoded")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload.EventType != constants.WebhookEventConversionCreated {
		t.Errorf("event = %s, want %s", payload.EventType, constants.WebhookEventConversionCreated)
	}
	if network.DataString(payload.Data, network.DataKeyConversionID) != "t100" {
		t.Errorf("conversion id = %s, want t100", network.DataString(payload.Data, network.DataKeyConversionID))
	}
	if network.DataMoney(payload.Data, network.DataKeyOrderValue).String() != "59.90" {
		t.Errorf("order value = %s, want 59.90", network.DataMoney(payload.Data, network.DataKeyOrderValue).String())
	}
}

func TestParseWebhookVoided(t *testing.T) {
	adapter := New(testConfig(""), "tenant-1", nil, Options{})
	body := url.Values{"transID": {"t100"}, "voided": {"1"}}.Encode()
	payload, err := adapter.ParseWebhook([]byte(body), "application/x-www-form-urlencoded")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload.EventType != constants.WebhookEventConversionCancelled {
		t.Errorf("event = %s, want %s", payload.EventType, constants.WebhookEventConversionCancelled)
	}
}

func TestValidateWebhookSignature(t *testing.T) {
	adapter := New(testConfig(""), "tenant-1", nil, Options{})
	body := []byte("transID=t100&transamount=59.90")
	good := network.SignPayload("hook-secret", body)
	if !adapter.ValidateWebhookSignature(body, good) {
		t.Error("valid signature rejected")
	}
	if adapter.ValidateWebhookSignature(body, "deadbeef") {
		t.Error("invalid signature accepted")
	}
	if adapter.ValidateWebhookSignature(body, "") {
		t.Error("empty signature accepted")
	}
}
