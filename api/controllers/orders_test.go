package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agmlabs/storebuilder-backend/api/middleware"
	"github.com/agmlabs/storebuilder-backend/internal/orders"
	"github.com/agmlabs/storebuilder-backend/pkg/db/models"
	"github.com/agmlabs/storebuilder-backend/pkg/enums"
	pkgerrors "github.com/agmlabs/storebuilder-backend/pkg/errors"
	"github.com/agmlabs/storebuilder-backend/pkg/logger"
	"github.com/agmlabs/storebuilder-backend/pkg/pagination"
)

type fakeOrderService struct {
	placeInput  *orders.PlaceInput
	placeResult *orders.PlaceResult
	placeErr    error

	trackOrder *models.Order
	trackErr   error

	listFilters orders.ListFilters
	listParams  pagination.Params

	updateTarget enums.OrderStatus
	updateOrder  *models.Order
	updateErr    error

	retryPayment *models.Payment
	retryErr     error
}

func (f *fakeOrderService) Place(ctx context.Context, input orders.PlaceInput) (*orders.PlaceResult, error) {
	f.placeInput = &input
	if f.placeErr != nil {
		return nil, f.placeErr
	}
	return f.placeResult, nil
}

func (f *fakeOrderService) Track(ctx context.Context, orderNumber string) (*models.Order, error) {
	if f.trackErr != nil {
		return nil, f.trackErr
	}
	return f.trackOrder, nil
}

func (f *fakeOrderService) Get(ctx context.Context, sellerUserID, orderID uuid.UUID) (*models.Order, error) {
	return f.trackOrder, nil
}

func (f *fakeOrderService) List(ctx context.Context, sellerUserID uuid.UUID, params pagination.Params, filters orders.ListFilters) ([]models.Order, pagination.Meta, error) {
	f.listParams = params
	f.listFilters = filters
	return nil, pagination.Meta{}, nil
}

func (f *fakeOrderService) Stats(ctx context.Context, sellerUserID uuid.UUID) (*orders.Stats, error) {
	return &orders.Stats{}, nil
}

func (f *fakeOrderService) UpdateStatus(ctx context.Context, sellerUserID, orderID uuid.UUID, target enums.OrderStatus) (*models.Order, error) {
	f.updateTarget = target
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return f.updateOrder, nil
}

func (f *fakeOrderService) RetryPayment(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	if f.retryErr != nil {
		return nil, f.retryErr
	}
	return f.retryPayment, nil
}

func testControllerLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func newOrderRouter(svc orders.Service) chi.Router {
	logg := testControllerLogger()
	r := chi.NewRouter()
	r.Post("/stores/{username}/orders", PlaceOrder(svc, logg))
	r.Get("/orders/track/{orderNumber}", TrackOrder(svc, logg))
	r.Get("/orders", ListOrders(svc, logg))
	r.Patch("/orders/{orderId}/status", UpdateOrderStatus(svc, logg))
	r.Post("/orders/{orderId}/payment", RetryOrderPayment(svc, logg))
	return r
}

func asSeller(req *http.Request) *http.Request {
	ctx := middleware.WithUser(req.Context(), uuid.New(), "seller@example.com")
	return req.WithContext(ctx)
}

func TestPlaceOrderHandler(t *testing.T) {
	svc := &fakeOrderService{
		placeResult: &orders.PlaceResult{
			Order:   &models.Order{ID: uuid.New(), OrderNumber: "AGM-2026-123456"},
			Payment: &models.Payment{ID: uuid.New(), PaymentReference: "PAY-abc"},
		},
	}
	router := newOrderRouter(svc)

	body, err := json.Marshal(map[string]any{
		"customer_name":  "Ngozi Okafor",
		"customer_phone": "+2348012345678",
		"items": []map[string]any{
			{"product_id": uuid.NewString(), "quantity": 2},
		},
		"total": "9000.00",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/stores/adas-fabrics/orders", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, svc.placeInput)
	assert.Equal(t, "adas-fabrics", svc.placeInput.StoreUsername)
	assert.Len(t, svc.placeInput.Items, 1)
	assert.Equal(t, 2, svc.placeInput.Items[0].Quantity)
	require.NotNil(t, svc.placeInput.ClaimedTotal)
	assert.True(t, decimal.RequireFromString("9000.00").Equal(*svc.placeInput.ClaimedTotal))
}

func TestPlaceOrderHandlerRejectsBadBody(t *testing.T) {
	svc := &fakeOrderService{}
	router := newOrderRouter(svc)

	cases := map[string]string{
		"missing name":   `{"customer_phone":"+2348012345678","items":[{"product_id":"` + uuid.NewString() + `","quantity":1}]}`,
		"no items":       `{"customer_name":"Ngozi","customer_phone":"+2348012345678","items":[]}`,
		"zero quantity":  `{"customer_name":"Ngozi","customer_phone":"+2348012345678","items":[{"product_id":"` + uuid.NewString() + `","quantity":0}]}`,
		"malformed json": `{`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/stores/adas-fabrics/orders", bytes.NewReader([]byte(body)))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Nil(t, svc.placeInput)
		})
	}
}

func TestPlaceOrderHandlerServiceError(t *testing.T) {
	svc := &fakeOrderService{placeErr: pkgerrors.New(pkgerrors.CodeNotFound, "store not found")}
	router := newOrderRouter(svc)

	body := `{"customer_name":"Ngozi","customer_phone":"+2348012345678","items":[{"product_id":"` + uuid.NewString() + `","quantity":1}]}`
	req := httptest.NewRequest(http.MethodPost, "/stores/ghost/orders", bytes.NewReader([]byte(body)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTrackOrderHandler(t *testing.T) {
	svc := &fakeOrderService{trackOrder: &models.Order{OrderNumber: "AGM-2026-123456"}}
	router := newOrderRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/orders/track/AGM-2026-123456", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "AGM-2026-123456")
}

func TestTrackOrderHandlerNotFound(t *testing.T) {
	svc := &fakeOrderService{trackErr: pkgerrors.New(pkgerrors.CodeNotFound, "order not found")}
	router := newOrderRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/orders/track/AGM-2026-000000", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListOrdersHandlerParsesFilters(t *testing.T) {
	svc := &fakeOrderService{}
	router := newOrderRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/orders?status=confirmed&payment_status=paid&q=ngozi&page=2&limit=10", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asSeller(req))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.listFilters.Status)
	assert.Equal(t, enums.OrderStatusConfirmed, *svc.listFilters.Status)
	require.NotNil(t, svc.listFilters.PaymentStatus)
	assert.Equal(t, enums.OrderPaymentStatusPaid, *svc.listFilters.PaymentStatus)
	assert.Equal(t, "ngozi", svc.listFilters.Query)
	assert.Equal(t, 2, svc.listParams.Page)
	assert.Equal(t, 10, svc.listParams.Limit)
}

func TestListOrdersHandlerRejectsBadFilter(t *testing.T) {
	svc := &fakeOrderService{}
	router := newOrderRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/orders?status=shipped", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asSeller(req))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListOrdersHandlerRequiresAuth(t *testing.T) {
	svc := &fakeOrderService{}
	router := newOrderRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdateOrderStatusHandler(t *testing.T) {
	svc := &fakeOrderService{updateOrder: &models.Order{Status: enums.OrderStatusConfirmed}}
	router := newOrderRouter(svc)

	req := httptest.NewRequest(http.MethodPatch, "/orders/"+uuid.NewString()+"/status", bytes.NewReader([]byte(`{"status":"confirmed"}`)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asSeller(req))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, enums.OrderStatusConfirmed, svc.updateTarget)
}

func TestUpdateOrderStatusHandlerBadStatus(t *testing.T) {
	svc := &fakeOrderService{}
	router := newOrderRouter(svc)

	req := httptest.NewRequest(http.MethodPatch, "/orders/"+uuid.NewString()+"/status", bytes.NewReader([]byte(`{"status":"shipped"}`)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asSeller(req))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateOrderStatusHandlerBadID(t *testing.T) {
	svc := &fakeOrderService{}
	router := newOrderRouter(svc)

	req := httptest.NewRequest(http.MethodPatch, "/orders/not-a-uuid/status", bytes.NewReader([]byte(`{"status":"confirmed"}`)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asSeller(req))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRetryOrderPaymentHandler(t *testing.T) {
	svc := &fakeOrderService{retryPayment: &models.Payment{PaymentReference: "PAY-retry"}}
	router := newOrderRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/orders/"+uuid.NewString()+"/payment", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asSeller(req))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "PAY-retry")
}

func TestRetryOrderPaymentHandlerConflict(t *testing.T) {
	svc := &fakeOrderService{retryErr: pkgerrors.New(pkgerrors.CodeConflict, "a pending payment already exists")}
	router := newOrderRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/orders/"+uuid.NewString()+"/payment", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asSeller(req))

	assert.Equal(t, http.StatusConflict, rec.Code)
}
