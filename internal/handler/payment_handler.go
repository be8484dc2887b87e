// Package handler はHTTP APIのハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/payhub/internal/model"
	"github.com/hitoshi/payhub/internal/payment"
)

// PaymentServiceInterface は決済ハンドラーが必要とするサービスインターフェース。
type PaymentServiceInterface interface {
	// RegisterPayment はイベントに対する支払いを登録する。
	RegisterPayment(ctx context.Context, cmd payment.ChargeCommand) (*payment.ChargeReceipt, error)
	// ListHistoryByUser は指定メールアドレスのユーザーの支払い履歴を返す。
	ListHistoryByUser(ctx context.Context, email string) ([]payment.HistoryEntry, error)
	// ListAllHistory は全ユーザーの支払い履歴を返す。
	ListAllHistory(ctx context.Context) ([]*model.PaymentRecord, error)
}

// PaymentHandler は決済のHTTPハンドラー。
type PaymentHandler struct {
	service PaymentServiceInterface
}

// NewPaymentHandler はPaymentHandlerを生成する。
func NewPaymentHandler(service PaymentServiceInterface) *PaymentHandler {
	return &PaymentHandler{
		service: service,
	}
}

// chargeRequest は支払い登録リクエストのボディ。
type chargeRequest struct {
	Email            string `json:"email"`
	EventID          string `json:"event_id"`
	PaymentMethodRef string `json:"payment_method_ref"`
	Currency         string `json:"currency"`
	Amount           string `json:"amount"`
	CouponID         string `json:"coupon_id,omitempty"`
}

// chargeResponse は支払い登録のAPIレスポンス。
// Warningsが空でない場合、決済自体は完了しているが一部の後続処理が失敗している。
type chargeResponse struct {
	HistoryID       string   `json:"history_id"`
	GatewayChargeID string   `json:"gateway_charge_id"`
	PaidAt          string   `json:"paid_at"`
	Warnings        []string `json:"warnings,omitempty"`
}

// historyEntryResponse は支払い履歴1件のAPIレスポンス。
type historyEntryResponse struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	UserName  string `json:"user_name,omitempty"`
	EventID   string `json:"event_id"`
	CardBrand string `json:"card_brand"`
	LastFour  string `json:"last_four"`
	Amount    string `json:"amount"`
	CreatedAt string `json:"created_at"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// Charge はイベントに対する支払い登録を処理する。
// POST /api/payments/charge
func (h *PaymentHandler) Charge(w http.ResponseWriter, r *http.Request) {
	var req chargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	if req.Email == "" || req.EventID == "" || req.PaymentMethodRef == "" || req.Currency == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "email, event_id, payment_method_ref, currencyは必須です。",
			Category: "validation",
			Action:   "必須フィールドをすべて指定してください。",
		})
		return
	}

	amount, err := model.NewAmountFromString(req.Amount)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	receipt, err := h.service.RegisterPayment(r.Context(), payment.ChargeCommand{
		Email:            req.Email,
		EventID:          req.EventID,
		PaymentMethodRef: req.PaymentMethodRef,
		Currency:         req.Currency,
		Amount:           amount,
		CouponID:         req.CouponID,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(chargeResponse{
		HistoryID:       receipt.HistoryID,
		GatewayChargeID: receipt.GatewayChargeID,
		PaidAt:          receipt.PaidAt.Format(time.RFC3339),
		Warnings:        receipt.Warnings,
	})
}

// ListUserHistory はユーザーの支払い履歴一覧を取得する。
// GET /api/payments/history/{email}
func (h *PaymentHandler) ListUserHistory(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	entries, err := h.service.ListHistoryByUser(r.Context(), email)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]historyEntryResponse, len(entries))
	for i, e := range entries {
		resp := toHistoryEntryResponse(e.Record)
		resp.UserName = e.UserName
		results[i] = resp
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

// ListAllHistory は全支払い履歴を取得する。管理用途。
// GET /api/payments/history
func (h *PaymentHandler) ListAllHistory(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.ListAllHistory(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]historyEntryResponse, len(records))
	for i, rec := range records {
		results[i] = toHistoryEntryResponse(rec)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

// toHistoryEntryResponse はPaymentRecordをAPIレスポンス型に変換する。
func toHistoryEntryResponse(rec *model.PaymentRecord) historyEntryResponse {
	return historyEntryResponse{
		ID:        rec.ID,
		UserID:    rec.UserID,
		EventID:   rec.EventID,
		CardBrand: rec.CardBrand,
		LastFour:  rec.LastFour,
		Amount:    rec.Amount.String(),
		CreatedAt: rec.CreatedAt.Format(time.RFC3339),
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
// 検証系エラーは4xx、ゲートウェイ・インフラ系エラーは5xxに割り当てる。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUserNotFound, model.ErrCodePaymentMethodNotFound:
		return http.StatusNotFound
	case model.ErrCodeDuplicatePayment:
		return http.StatusConflict
	case model.ErrCodeInvalidAmount:
		return http.StatusBadRequest
	case model.ErrCodePaymentNotCompleted:
		return http.StatusPaymentRequired
	case model.ErrCodeGatewayUnavailable, model.ErrCodeGatewayRegistration:
		return http.StatusBadGateway
	case model.ErrCodeHistoryPersistenceFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
