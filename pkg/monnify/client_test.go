package monnify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/agmlabs/storebuilder-backend/pkg/config"
	"github.com/agmlabs/storebuilder-backend/pkg/enums"
	pkgerrors "github.com/agmlabs/storebuilder-backend/pkg/errors"
	"github.com/agmlabs/storebuilder-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "monnify-test", Level: zerolog.Disabled})
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(config.MonnifyConfig{
		BaseURL:       server.URL,
		APIKey:        "MK_TEST_KEY",
		SecretKey:     "test-secret",
		ContractCode:  "1234567890",
		WebhookSecret: "webhook-secret",
		Timeout:       5 * time.Second,
	}, testLogger())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client, server
}

func writeEnvelope(w http.ResponseWriter, body any) {
	raw, _ := json.Marshal(body)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"requestSuccessful": true,
		"responseMessage":   "success",
		"responseCode":      "0",
		"responseBody":      json.RawMessage(raw),
	})
}

func loginHandler(loginCalls *int64, expiresIn int64) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(loginCalls, 1)
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{"requestSuccessful": false})
			return
		}
		writeEnvelope(w, map[string]any{"accessToken": "test-token", "expiresIn": expiresIn})
	}
}

func TestAccessTokenCachedAcrossCalls(t *testing.T) {
	t.Parallel()

	var loginCalls int64
	mux := http.NewServeMux()
	mux.HandleFunc(loginPath, loginHandler(&loginCalls, 3600))
	mux.HandleFunc(banksPath, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("missing bearer token: %q", r.Header.Get("Authorization"))
		}
		writeEnvelope(w, []map[string]string{{"name": "Test Bank", "code": "044"}})
	})

	client, _ := newTestClient(t, mux)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		banks, err := client.ListBanks(ctx)
		if err != nil {
			t.Fatalf("list banks: %v", err)
		}
		if len(banks) != 1 || banks[0].Code != "044" {
			t.Fatalf("unexpected banks: %+v", banks)
		}
	}

	if got := atomic.LoadInt64(&loginCalls); got != 1 {
		t.Fatalf("expected a single login, got %d", got)
	}
}

func TestAccessTokenConcurrentRefreshCollapses(t *testing.T) {
	t.Parallel()

	var loginCalls int64
	mux := http.NewServeMux()
	mux.HandleFunc(loginPath, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&loginCalls, 1)
		time.Sleep(20 * time.Millisecond)
		writeEnvelope(w, map[string]any{"accessToken": "test-token", "expiresIn": 3600})
	})

	client, _ := newTestClient(t, mux)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := client.accessToken(ctx); err != nil {
				t.Errorf("access token: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt64(&loginCalls); got != 1 {
		t.Fatalf("expected concurrent refreshes to collapse into one login, got %d", got)
	}
}

func TestInitTransaction(t *testing.T) {
	t.Parallel()

	var loginCalls int64
	mux := http.NewServeMux()
	mux.HandleFunc(loginPath, loginHandler(&loginCalls, 3600))
	mux.HandleFunc(initTransactionPath, func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if payload["contractCode"] != "1234567890" {
			t.Errorf("contract code not forwarded: %v", payload["contractCode"])
		}
		if payload["paymentReference"] != "PAY-abc" {
			t.Errorf("unexpected payment reference: %v", payload["paymentReference"])
		}
		writeEnvelope(w, map[string]any{
			"transactionReference": "MNFY|1|20260831",
			"paymentReference":     "PAY-abc",
			"checkoutUrl":          "https://sandbox.monnify.com/checkout/MNFY|1|20260831",
			"accountNumber":        "3000000001",
			"accountName":          "AGM Checkout",
			"bankName":             "Moniepoint MFB",
		})
	})

	client, _ := newTestClient(t, mux)

	tx, err := client.InitTransaction(context.Background(), InitTransactionParams{
		Amount:           decimal.NewFromInt(5000),
		PaymentReference: "PAY-abc",
		PaymentDesc:      "Order AGM-2026-000001",
		CustomerName:     "Ada Obi",
		CustomerEmail:    "ada@example.com",
	})
	if err != nil {
		t.Fatalf("init transaction: %v", err)
	}
	if tx.TransactionReference != "MNFY|1|20260831" {
		t.Fatalf("unexpected transaction reference: %s", tx.TransactionReference)
	}
	if tx.AccountNumber != "3000000001" || tx.BankName != "Moniepoint MFB" {
		t.Fatalf("virtual account details not mapped: %+v", tx)
	}
}

func TestQueryTransactionGatewayFailureMapsToDependency(t *testing.T) {
	t.Parallel()

	var loginCalls int64
	mux := http.NewServeMux()
	mux.HandleFunc(loginPath, loginHandler(&loginCalls, 3600))
	mux.HandleFunc(queryPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"requestSuccessful": false,
			"responseMessage":   "internal error",
			"responseCode":      "99",
		})
	})

	client, _ := newTestClient(t, mux)

	_, err := client.QueryTransaction(context.Background(), "PAY-abc")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestQueryTransactionForwardsReference(t *testing.T) {
	t.Parallel()

	var loginCalls int64
	mux := http.NewServeMux()
	mux.HandleFunc(loginPath, loginHandler(&loginCalls, 3600))
	mux.HandleFunc(queryPath, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("paymentReference"); got != "PAY-abc" {
			t.Errorf("unexpected reference %q", got)
		}
		writeEnvelope(w, map[string]any{
			"transactionReference": "MNFY|1|20260831",
			"paymentReference":     "PAY-abc",
			"amountPaid":           5000,
			"paymentStatus":        "PAID",
			"paymentMethod":        "ACCOUNT_TRANSFER",
		})
	})

	client, _ := newTestClient(t, mux)

	status, err := client.QueryTransaction(context.Background(), "PAY-abc")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if status.PaymentStatus != "PAID" {
		t.Fatalf("unexpected status: %s", status.PaymentStatus)
	}
	if !status.AmountPaid.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("unexpected amount: %s", status.AmountPaid)
	}
}

func TestMapStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		gateway string
		want    enums.PaymentStatus
	}{
		{"PAID", enums.PaymentStatusPaid},
		{"paid", enums.PaymentStatusPaid},
		{"FAILED", enums.PaymentStatusFailed},
		{"CANCELLED", enums.PaymentStatusFailed},
		{"EXPIRED", enums.PaymentStatusExpired},
		{"PENDING", enums.PaymentStatusPending},
		{"PARTIALLY_PAID", enums.PaymentStatusPending},
		{"", enums.PaymentStatusPending},
	}
	for _, tc := range cases {
		if got := MapStatus(tc.gateway); got != tc.want {
			t.Errorf("MapStatus(%q) = %s, want %s", tc.gateway, got, tc.want)
		}
	}
}

func TestVerifySignature(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.NewServeMux())
	body := []byte(`{"eventType":"SUCCESSFUL_TRANSACTION"}`)

	good := ComputeSignature("webhook-secret", body)
	if !client.VerifySignature(body, good) {
		t.Fatalf("expected valid signature to verify")
	}
	if client.VerifySignature(body, good[:len(good)-2]+"00") {
		t.Fatalf("tampered signature should fail")
	}
	if client.VerifySignature(body, "") {
		t.Fatalf("empty signature should fail")
	}
	if client.VerifySignature([]byte(`{"eventType":"FAILED_TRANSACTION"}`), good) {
		t.Fatalf("signature over different body should fail")
	}
}

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	base := config.MonnifyConfig{
		BaseURL:      "https://sandbox.monnify.com",
		APIKey:       "k",
		SecretKey:    "s",
		ContractCode: "c",
	}

	cases := []struct {
		name   string
		mutate func(*config.MonnifyConfig)
	}{
		{"missing api key", func(c *config.MonnifyConfig) { c.APIKey = " " }},
		{"missing secret", func(c *config.MonnifyConfig) { c.SecretKey = "" }},
		{"missing contract code", func(c *config.MonnifyConfig) { c.ContractCode = "" }},
	}
	for _, tc := range cases {
		cfg := base
		tc.mutate(&cfg)
		if _, err := NewClient(cfg, testLogger()); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}

	if _, err := NewClient(base, nil); err == nil {
		t.Errorf("nil logger: expected error")
	}
	if _, err := NewClient(base, testLogger()); err != nil {
		t.Errorf("valid config should build: %v", err)
	}
}
