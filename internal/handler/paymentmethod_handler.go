package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/payhub/internal/model"
)

// PaymentMethodServiceInterface は支払い方法ハンドラーが必要とするサービスインターフェース。
type PaymentMethodServiceInterface interface {
	// RegisterPaymentMethod は支払い方法トークンをユーザーに登録する。
	RegisterPaymentMethod(ctx context.Context, email, methodToken string) error
	// HasBillingIdentity は請求アイデンティティの存在確認を行う。
	HasBillingIdentity(ctx context.Context, email string) (bool, error)
	// ListMethods はユーザーの支払い方法一覧を返す。
	ListMethods(ctx context.Context, email string) ([]*model.PaymentMethod, error)
	// GetMethod はユーザーの特定の支払い方法を返す。
	GetMethod(ctx context.Context, email, methodRef string) (*model.PaymentMethod, error)
	// SetDefault は既定の支払い方法を設定する。
	SetDefault(ctx context.Context, email, methodRef string) (bool, error)
	// Detach は支払い方法の紐付けを解除する。
	Detach(ctx context.Context, methodRef string) bool
}

// PaymentMethodHandler は支払い方法管理のHTTPハンドラー。
type PaymentMethodHandler struct {
	service PaymentMethodServiceInterface
}

// NewPaymentMethodHandler はPaymentMethodHandlerを生成する。
func NewPaymentMethodHandler(service PaymentMethodServiceInterface) *PaymentMethodHandler {
	return &PaymentMethodHandler{
		service: service,
	}
}

// registerMethodRequest は支払い方法登録リクエストのボディ。
type registerMethodRequest struct {
	Email       string `json:"email"`
	MethodToken string `json:"method_token"`
}

// lookupRequest は請求アイデンティティ確認リクエストのボディ。
type lookupRequest struct {
	Email string `json:"email"`
}

// lookupResponse は請求アイデンティティ確認のAPIレスポンス。
type lookupResponse struct {
	Exists bool `json:"exists"`
}

// methodResponse は支払い方法のAPIレスポンス。
type methodResponse struct {
	MethodRef string `json:"method_ref"`
	CardType  string `json:"card_type"`
	LastFour  string `json:"last_four"`
	IsDefault bool   `json:"is_default"`
}

// operationResponse は管理操作の成功可否レスポンス。
type operationResponse struct {
	Success bool `json:"success"`
}

// Register は支払い方法の登録を処理する。
// POST /api/payments/methods
func (h *PaymentMethodHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerMethodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	if req.Email == "" || req.MethodToken == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "emailとmethod_tokenは必須です。",
			Category: "validation",
			Action:   "必須フィールドをすべて指定してください。",
		})
		return
	}

	if err := h.service.RegisterPaymentMethod(r.Context(), req.Email, req.MethodToken); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

// Lookup は請求アイデンティティの存在確認を処理する。
// POST /api/payments/methods/lookup
func (h *PaymentMethodHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	var req lookupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "emailは必須です。",
			Category: "validation",
			Action:   "メールアドレスを指定してください。",
		})
		return
	}

	exists, err := h.service.HasBillingIdentity(r.Context(), req.Email)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(lookupResponse{Exists: exists})
}

// List はユーザーの支払い方法一覧を取得する。
// GET /api/payments/methods/{email}
func (h *PaymentMethodHandler) List(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	methods, err := h.service.ListMethods(r.Context(), email)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]methodResponse, len(methods))
	for i, m := range methods {
		results[i] = toMethodResponse(m)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

// Get はユーザーの特定の支払い方法を取得する。
// GET /api/payments/methods/{email}/{methodRef}
func (h *PaymentMethodHandler) Get(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	methodRef := chi.URLParam(r, "methodRef")

	method, err := h.service.GetMethod(r.Context(), email, methodRef)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toMethodResponse(method))
}

// SetDefault は既定の支払い方法の設定を処理する。
// PUT /api/payments/methods/{email}/default/{methodRef}
func (h *PaymentMethodHandler) SetDefault(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	methodRef := chi.URLParam(r, "methodRef")

	ok, err := h.service.SetDefault(r.Context(), email, methodRef)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(operationResponse{Success: ok})
}

// Detach は支払い方法の紐付け解除を処理する。
// DELETE /api/payments/methods/detach/{methodRef}
func (h *PaymentMethodHandler) Detach(w http.ResponseWriter, r *http.Request) {
	methodRef := chi.URLParam(r, "methodRef")

	ok := h.service.Detach(r.Context(), methodRef)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(operationResponse{Success: ok})
}

// toMethodResponse はPaymentMethodをAPIレスポンス型に変換する。
func toMethodResponse(m *model.PaymentMethod) methodResponse {
	return methodResponse{
		MethodRef: m.MethodRef,
		CardType:  string(m.CardType),
		LastFour:  m.LastFour,
		IsDefault: m.IsDefault,
	}
}
