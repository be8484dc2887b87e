package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/payhub/internal/model"
)

// mockPaymentMethodService はPaymentMethodServiceInterfaceのモック実装。
type mockPaymentMethodService struct {
	registerPaymentMethodFn func(ctx context.Context, email, methodToken string) error
	hasBillingIdentityFn    func(ctx context.Context, email string) (bool, error)
	listMethodsFn           func(ctx context.Context, email string) ([]*model.PaymentMethod, error)
	getMethodFn             func(ctx context.Context, email, methodRef string) (*model.PaymentMethod, error)
	setDefaultFn            func(ctx context.Context, email, methodRef string) (bool, error)
	detachFn                func(ctx context.Context, methodRef string) bool
}

func (m *mockPaymentMethodService) RegisterPaymentMethod(ctx context.Context, email, methodToken string) error {
	if m.registerPaymentMethodFn != nil {
		return m.registerPaymentMethodFn(ctx, email, methodToken)
	}
	return nil
}

func (m *mockPaymentMethodService) HasBillingIdentity(ctx context.Context, email string) (bool, error) {
	if m.hasBillingIdentityFn != nil {
		return m.hasBillingIdentityFn(ctx, email)
	}
	return false, nil
}

func (m *mockPaymentMethodService) ListMethods(ctx context.Context, email string) ([]*model.PaymentMethod, error) {
	if m.listMethodsFn != nil {
		return m.listMethodsFn(ctx, email)
	}
	return nil, nil
}

func (m *mockPaymentMethodService) GetMethod(ctx context.Context, email, methodRef string) (*model.PaymentMethod, error) {
	if m.getMethodFn != nil {
		return m.getMethodFn(ctx, email, methodRef)
	}
	return nil, nil
}

func (m *mockPaymentMethodService) SetDefault(ctx context.Context, email, methodRef string) (bool, error) {
	if m.setDefaultFn != nil {
		return m.setDefaultFn(ctx, email, methodRef)
	}
	return false, nil
}

func (m *mockPaymentMethodService) Detach(ctx context.Context, methodRef string) bool {
	if m.detachFn != nil {
		return m.detachFn(ctx, methodRef)
	}
	return false
}

// --- POST /api/payments/methods テスト ---

func TestPaymentMethodHandler_Register_Success(t *testing.T) {
	svc := &mockPaymentMethodService{
		registerPaymentMethodFn: func(ctx context.Context, email, methodToken string) error {
			if email != "taro@example.com" {
				t.Errorf("email = %q, want %q", email, "taro@example.com")
			}
			if methodToken != "pm_visa_1" {
				t.Errorf("methodToken = %q, want %q", methodToken, "pm_visa_1")
			}
			return nil
		},
	}
	h := NewPaymentMethodHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/payments/methods",
		bytes.NewReader([]byte(`{"email": "taro@example.com", "method_token": "pm_visa_1"}`)))
	w := httptest.NewRecorder()

	h.Register(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", w.Code, http.StatusCreated)
	}
}

func TestPaymentMethodHandler_Register_MissingFields_Returns400(t *testing.T) {
	serviceCalled := false
	svc := &mockPaymentMethodService{
		registerPaymentMethodFn: func(ctx context.Context, email, methodToken string) error {
			serviceCalled = true
			return nil
		},
	}
	h := NewPaymentMethodHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/payments/methods",
		bytes.NewReader([]byte(`{"email": "taro@example.com"}`)))
	w := httptest.NewRecorder()

	h.Register(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if serviceCalled {
		t.Error("service should not be called when required fields are missing")
	}
}

func TestPaymentMethodHandler_Register_UnknownUser_Returns404(t *testing.T) {
	svc := &mockPaymentMethodService{
		registerPaymentMethodFn: func(ctx context.Context, email, methodToken string) error {
			return model.NewUserNotFoundError(email)
		},
	}
	h := NewPaymentMethodHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/payments/methods",
		bytes.NewReader([]byte(`{"email": "nobody@example.com", "method_token": "pm_visa_1"}`)))
	w := httptest.NewRecorder()

	h.Register(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestPaymentMethodHandler_Register_GatewayFailure_Returns502(t *testing.T) {
	svc := &mockPaymentMethodService{
		registerPaymentMethodFn: func(ctx context.Context, email, methodToken string) error {
			return model.NewGatewayRegistrationError()
		},
	}
	h := NewPaymentMethodHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/payments/methods",
		bytes.NewReader([]byte(`{"email": "taro@example.com", "method_token": "pm_visa_1"}`)))
	w := httptest.NewRecorder()

	h.Register(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadGateway)
	}
}

// --- POST /api/payments/methods/lookup テスト ---

func TestPaymentMethodHandler_Lookup_ReturnsExistence(t *testing.T) {
	tests := []struct {
		name   string
		exists bool
	}{
		{"identity exists", true},
		{"identity does not exist", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockPaymentMethodService{
				hasBillingIdentityFn: func(ctx context.Context, email string) (bool, error) {
					return tt.exists, nil
				},
			}
			h := NewPaymentMethodHandler(svc)

			req := httptest.NewRequest(http.MethodPost, "/api/payments/methods/lookup",
				bytes.NewReader([]byte(`{"email": "taro@example.com"}`)))
			w := httptest.NewRecorder()

			h.Lookup(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
			}

			var resp struct {
				Exists bool `json:"exists"`
			}
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Exists != tt.exists {
				t.Errorf("exists = %v, want %v", resp.Exists, tt.exists)
			}
		})
	}
}

func TestPaymentMethodHandler_Lookup_MissingEmail_Returns400(t *testing.T) {
	h := NewPaymentMethodHandler(&mockPaymentMethodService{})

	req := httptest.NewRequest(http.MethodPost, "/api/payments/methods/lookup",
		bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()

	h.Lookup(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// --- GET /api/payments/methods/{email} テスト ---

func TestPaymentMethodHandler_List_Success(t *testing.T) {
	svc := &mockPaymentMethodService{
		listMethodsFn: func(ctx context.Context, email string) ([]*model.PaymentMethod, error) {
			return []*model.PaymentMethod{
				{MethodRef: "pm_visa_1", CardType: "visa", LastFour: "4242", IsDefault: true},
				{MethodRef: "pm_mc_2", CardType: "mastercard", LastFour: "4444", IsDefault: false},
			}, nil
		},
	}
	h := NewPaymentMethodHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/payments/methods/taro@example.com", nil)
	req = withChiURLParam(req, "email", "taro@example.com")
	w := httptest.NewRecorder()

	h.List(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp []struct {
		MethodRef string `json:"method_ref"`
		CardType  string `json:"card_type"`
		LastFour  string `json:"last_four"`
		IsDefault bool   `json:"is_default"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp) != 2 {
		t.Fatalf("len(resp) = %d, want 2", len(resp))
	}
	if resp[0].MethodRef != "pm_visa_1" || !resp[0].IsDefault {
		t.Errorf("first method = %+v, want pm_visa_1 with is_default=true", resp[0])
	}
	if resp[1].CardType != "mastercard" {
		t.Errorf("card_type = %q, want %q", resp[1].CardType, "mastercard")
	}
}

func TestPaymentMethodHandler_List_NoMethods_ReturnsEmptyArray(t *testing.T) {
	svc := &mockPaymentMethodService{
		listMethodsFn: func(ctx context.Context, email string) ([]*model.PaymentMethod, error) {
			return []*model.PaymentMethod{}, nil
		},
	}
	h := NewPaymentMethodHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/payments/methods/taro@example.com", nil)
	req = withChiURLParam(req, "email", "taro@example.com")
	w := httptest.NewRecorder()

	h.List(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := w.Body.String(); got != "[]\n" {
		t.Errorf("body = %q, want %q", got, "[]\n")
	}
}

// --- GET /api/payments/methods/{email}/{methodRef} テスト ---

func TestPaymentMethodHandler_Get_Success(t *testing.T) {
	svc := &mockPaymentMethodService{
		getMethodFn: func(ctx context.Context, email, methodRef string) (*model.PaymentMethod, error) {
			if methodRef != "pm_visa_1" {
				t.Errorf("methodRef = %q, want %q", methodRef, "pm_visa_1")
			}
			return &model.PaymentMethod{MethodRef: "pm_visa_1", CardType: "visa", LastFour: "4242"}, nil
		},
	}
	h := NewPaymentMethodHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/payments/methods/taro@example.com/pm_visa_1", nil)
	req = withChiURLParam(req, "email", "taro@example.com")
	req = withChiURLParam(req, "methodRef", "pm_visa_1")
	w := httptest.NewRecorder()

	h.Get(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp struct {
		MethodRef string `json:"method_ref"`
		LastFour  string `json:"last_four"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.MethodRef != "pm_visa_1" || resp.LastFour != "4242" {
		t.Errorf("response = %+v, want pm_visa_1/4242", resp)
	}
}

func TestPaymentMethodHandler_Get_NotFound_Returns404(t *testing.T) {
	svc := &mockPaymentMethodService{
		getMethodFn: func(ctx context.Context, email, methodRef string) (*model.PaymentMethod, error) {
			return nil, model.NewPaymentMethodNotFoundError(methodRef)
		},
	}
	h := NewPaymentMethodHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/payments/methods/taro@example.com/pm_unknown", nil)
	req = withChiURLParam(req, "email", "taro@example.com")
	req = withChiURLParam(req, "methodRef", "pm_unknown")
	w := httptest.NewRecorder()

	h.Get(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}

	body := parseAPIErrorResponse(t, w)
	if body["code"] != model.ErrCodePaymentMethodNotFound {
		t.Errorf("code = %q, want %q", body["code"], model.ErrCodePaymentMethodNotFound)
	}
}

// --- PUT /api/payments/methods/{email}/default/{methodRef} テスト ---

func TestPaymentMethodHandler_SetDefault_ReportsOutcome(t *testing.T) {
	tests := []struct {
		name    string
		outcome bool
	}{
		{"success", true},
		{"gateway rejected", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockPaymentMethodService{
				setDefaultFn: func(ctx context.Context, email, methodRef string) (bool, error) {
					return tt.outcome, nil
				},
			}
			h := NewPaymentMethodHandler(svc)

			req := httptest.NewRequest(http.MethodPut, "/api/payments/methods/taro@example.com/default/pm_visa_1", nil)
			req = withChiURLParam(req, "email", "taro@example.com")
			req = withChiURLParam(req, "methodRef", "pm_visa_1")
			w := httptest.NewRecorder()

			h.SetDefault(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
			}

			var resp struct {
				Success bool `json:"success"`
			}
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Success != tt.outcome {
				t.Errorf("success = %v, want %v", resp.Success, tt.outcome)
			}
		})
	}
}

// --- DELETE /api/payments/methods/detach/{methodRef} テスト ---

func TestPaymentMethodHandler_Detach_ReportsOutcome(t *testing.T) {
	svc := &mockPaymentMethodService{
		detachFn: func(ctx context.Context, methodRef string) bool {
			return methodRef == "pm_visa_1"
		},
	}
	h := NewPaymentMethodHandler(svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/payments/methods/detach/pm_visa_1", nil)
	req = withChiURLParam(req, "methodRef", "pm_visa_1")
	w := httptest.NewRecorder()

	h.Detach(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp struct {
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Success {
		t.Error("success = false, want true")
	}
}
