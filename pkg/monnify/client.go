package monnify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/agmlabs/storebuilder-backend/pkg/config"
	pkgerrors "github.com/agmlabs/storebuilder-backend/pkg/errors"
	"github.com/agmlabs/storebuilder-backend/pkg/logger"
)

const (
	loginPath           = "/api/v1/auth/login"
	initTransactionPath = "/api/v1/merchant/transactions/init-transaction"
	queryPath           = "/api/v1/merchant/transactions/query"
	disbursePath        = "/api/v2/disbursements/single"
	banksPath           = "/api/v1/banks"
	validateAccountPath = "/api/v1/disbursements/account/validate"

	// tokenRefreshMargin refreshes the cached token this long before the
	// gateway-reported expiry.
	tokenRefreshMargin = 5 * time.Minute
)

var (
	errAPIKeyRequired       = errors.New("monnify api key is required")
	errSecretKeyRequired    = errors.New("monnify secret key is required")
	errContractCodeRequired = errors.New("monnify contract code is required")
	errLoggerRequired       = errors.New("monnify logger is required")
)

// Client wraps the Monnify merchant API with centralized auth, logging, and
// error mapping. A bearer token is fetched lazily and cached until shortly
// before it expires; concurrent refreshes collapse into a single login call.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	apiKey        string
	secretKey     string
	contractCode  string
	webhookSecret string
	logger        *logger.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
	refresh     singleflight.Group
}

// NewClient initializes the Monnify wrapper and validates the credentials.
func NewClient(cfg config.MonnifyConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	secretKey := strings.TrimSpace(cfg.SecretKey)
	if secretKey == "" {
		return nil, errSecretKeyRequired
	}
	contractCode := strings.TrimSpace(cfg.ContractCode)
	if contractCode == "" {
		return nil, errContractCodeRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient:    &http.Client{Timeout: timeout},
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:        apiKey,
		secretKey:     secretKey,
		contractCode:  contractCode,
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		logger:        logg,
	}, nil
}

// ContractCode returns the configured merchant contract code.
func (c *Client) ContractCode() string {
	if c == nil {
		return ""
	}
	return c.contractCode
}

// envelope is the wrapper every Monnify response uses.
type envelope struct {
	RequestSuccessful bool            `json:"requestSuccessful"`
	ResponseMessage   string          `json:"responseMessage"`
	ResponseCode      string          `json:"responseCode"`
	ResponseBody      json.RawMessage `json:"responseBody"`
}

type loginBody struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

// accessToken returns a valid bearer token, logging in when the cached one is
// missing or within the refresh margin of expiry.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		token := c.token
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	result, err, _ := c.refresh.Do("login", func() (any, error) {
		return c.login(ctx)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (c *Client) login(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+loginPath, nil)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building login request")
	}
	creds := base64.StdEncoding.EncodeToString([]byte(c.apiKey + ":" + c.secretKey))
	req.Header.Set("Authorization", "Basic "+creds)

	var body loginBody
	if err := c.do(req, "login", &body); err != nil {
		return "", err
	}
	if body.AccessToken == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "monnify login returned empty token")
	}

	ttl := time.Duration(body.ExpiresIn) * time.Second
	expiry := time.Now().Add(ttl - tokenRefreshMargin)
	if ttl <= tokenRefreshMargin {
		expiry = time.Now().Add(ttl / 2)
	}

	c.mu.Lock()
	c.token = body.AccessToken
	c.tokenExpiry = expiry
	c.mu.Unlock()

	return body.AccessToken, nil
}

// InitTransactionParams are the inputs for creating a checkout transaction.
type InitTransactionParams struct {
	Amount           decimal.Decimal
	Currency         string
	PaymentReference string
	PaymentDesc      string
	CustomerName     string
	CustomerEmail    string
	RedirectURL      string
	PaymentMethods   []string
}

// Transaction is the gateway's view of an initialized transaction.
type Transaction struct {
	TransactionReference string   `json:"transactionReference"`
	PaymentReference     string   `json:"paymentReference"`
	CheckoutURL          string   `json:"checkoutUrl"`
	AccountNumber        string   `json:"accountNumber"`
	AccountName          string   `json:"accountName"`
	BankName             string   `json:"bankName"`
	EnabledPaymentMethod []string `json:"enabledPaymentMethod"`
}

// InitTransaction creates a transaction and returns the checkout handle.
func (c *Client) InitTransaction(ctx context.Context, params InitTransactionParams) (*Transaction, error) {
	currency := params.Currency
	if currency == "" {
		currency = "NGN"
	}
	payload := map[string]any{
		"amount":             params.Amount,
		"currencyCode":       currency,
		"paymentReference":   params.PaymentReference,
		"paymentDescription": params.PaymentDesc,
		"customerName":       params.CustomerName,
		"customerEmail":      params.CustomerEmail,
		"contractCode":       c.contractCode,
		"redirectUrl":        params.RedirectURL,
	}
	if len(params.PaymentMethods) > 0 {
		payload["paymentMethods"] = params.PaymentMethods
	}

	c.log(ctx, "request", "init_transaction", map[string]any{
		"payment_reference": params.PaymentReference,
		"amount":            params.Amount.String(),
	})

	var tx Transaction
	if err := c.postJSON(ctx, initTransactionPath, payload, "init transaction", &tx); err != nil {
		return nil, err
	}

	c.log(ctx, "response", "init_transaction", map[string]any{
		"payment_reference":     params.PaymentReference,
		"transaction_reference": tx.TransactionReference,
	})
	return &tx, nil
}

// TransactionStatus is the gateway's view of a queried transaction.
type TransactionStatus struct {
	TransactionReference string          `json:"transactionReference"`
	PaymentReference     string          `json:"paymentReference"`
	AmountPaid           decimal.Decimal `json:"amountPaid"`
	PaymentStatus        string          `json:"paymentStatus"`
	PaymentMethod        string          `json:"paymentMethod"`
	PaidOn               string          `json:"paidOn"`
}

// QueryTransaction fetches the current gateway status for a payment reference.
func (c *Client) QueryTransaction(ctx context.Context, paymentReference string) (*TransactionStatus, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := c.baseURL + queryPath + "?paymentReference=" + url.QueryEscape(paymentReference)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building query request")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	c.log(ctx, "request", "query_transaction", map[string]any{"payment_reference": paymentReference})

	var status TransactionStatus
	if err := c.do(req, "query transaction", &status); err != nil {
		return nil, err
	}

	c.log(ctx, "response", "query_transaction", map[string]any{
		"payment_reference": paymentReference,
		"gateway_status":    status.PaymentStatus,
	})
	return &status, nil
}

// TransferParams are the inputs for a single payout disbursement.
type TransferParams struct {
	Amount        decimal.Decimal
	Reference     string
	Narration     string
	BankCode      string
	AccountNumber string
	SourceAccount string
}

// TransferResult is the gateway's view of a disbursement.
type TransferResult struct {
	Reference string          `json:"reference"`
	Status    string          `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
	TotalFee  decimal.Decimal `json:"totalFee"`
}

// InitiateTransfer sends a single disbursement to a bank account.
func (c *Client) InitiateTransfer(ctx context.Context, params TransferParams) (*TransferResult, error) {
	payload := map[string]any{
		"amount":                  params.Amount,
		"reference":               params.Reference,
		"narration":               params.Narration,
		"destinationBankCode":     params.BankCode,
		"destinationAccountNumber": params.AccountNumber,
		"currency":                "NGN",
		"sourceAccountNumber":     params.SourceAccount,
	}

	c.log(ctx, "request", "initiate_transfer", map[string]any{
		"reference": params.Reference,
		"amount":    params.Amount.String(),
	})

	var result TransferResult
	if err := c.postJSON(ctx, disbursePath, payload, "initiate transfer", &result); err != nil {
		return nil, err
	}

	c.log(ctx, "response", "initiate_transfer", map[string]any{
		"reference": params.Reference,
		"status":    result.Status,
	})
	return &result, nil
}

// Bank is one entry in the gateway's supported bank list.
type Bank struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// ListBanks returns the banks supported for transfers.
func (c *Client) ListBanks(ctx context.Context) ([]Bank, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+banksPath, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building banks request")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	var banks []Bank
	if err := c.do(req, "list banks", &banks); err != nil {
		return nil, err
	}
	return banks, nil
}

// AccountDetails is the result of a bank account validation.
type AccountDetails struct {
	AccountNumber string `json:"accountNumber"`
	AccountName   string `json:"accountName"`
	BankCode      string `json:"bankCode"`
}

// ValidateBankAccount resolves the account name for a number and bank code.
func (c *Client) ValidateBankAccount(ctx context.Context, accountNumber, bankCode string) (*AccountDetails, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("accountNumber", accountNumber)
	q.Set("bankCode", bankCode)
	endpoint := c.baseURL + validateAccountPath + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building validate request")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	var details AccountDetails
	if err := c.do(req, "validate account", &details); err != nil {
		return nil, err
	}
	return &details, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, op string, out any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("encoding %s payload", op))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("building %s request", op))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	return c.do(req, op, out)
}

func (c *Client) do(req *http.Request, op string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("monnify %s failed", op))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("reading monnify %s response", op))
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("decoding monnify %s response", op))
	}

	if resp.StatusCode >= 400 || !env.RequestSuccessful {
		code := domainCodeForStatus(resp.StatusCode)
		return pkgerrors.New(code, fmt.Sprintf("monnify %s failed", op)).WithDetails(map[string]any{
			"response_code":    env.ResponseCode,
			"response_message": env.ResponseMessage,
		})
	}

	if out == nil || len(env.ResponseBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.ResponseBody, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("decoding monnify %s body", op))
	}
	return nil
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	case http.StatusBadRequest:
		return pkgerrors.CodeValidation
	default:
		return pkgerrors.CodeDependency
	}
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	c.logger.Info(ctx, fmt.Sprintf("monnify %s", phase))
}

func redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"token", "secret", "email", "phone", "account_number"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}
