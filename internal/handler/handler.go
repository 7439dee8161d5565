// Package handler содержит HTTP-обработчики API сервиса аренды ботов.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/pedrobots/bluebot-rental/internal/middleware"
	"github.com/pedrobots/bluebot-rental/internal/model"
	"github.com/pedrobots/bluebot-rental/internal/repository"
	"github.com/pedrobots/bluebot-rental/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Messages(ctx context.Context, sessionID string) ([]model.Message, error)
	HandleMessage(ctx context.Context, sessionID, text string) ([]model.Message, error)
	SelectPlan(ctx context.Context, sessionID, planID string) ([]model.Message, error)
	Checkout(ctx context.Context, sessionID string) (*model.CheckoutInfo, error)

	ActivePlans(ctx context.Context) ([]model.Plan, error)
	Leaderboard(ctx context.Context) ([]model.RankedReseller, error)

	AdminLogin(ctx context.Context, pin string) error
	AllPlans(ctx context.Context) ([]model.Plan, error)
	CreatePlan(ctx context.Context, p model.Plan) error
	UpdatePlan(ctx context.Context, p model.Plan) error
	DeletePlan(ctx context.Context, id string) error
	GetSettings(ctx context.Context) (*model.Settings, error)
	UpdateSettings(ctx context.Context, upd model.SettingsUpdate) error
	Resellers(ctx context.Context) ([]model.Reseller, error)
	AddReseller(ctx context.Context, name, whatsapp string) (*model.Reseller, error)
	RemoveReseller(ctx context.Context, id int64) error
	Orders(ctx context.Context) ([]model.Order, error)
	WriteOrdersCSV(ctx context.Context, w io.Writer) error
}

// Handler реализует HTTP-обработчики API сервиса аренды ботов.
type Handler struct {
	service   Service
	logger    *zap.Logger
	session   *middleware.SessionMiddleware
	adminAuth *middleware.AdminAuth
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, session *middleware.SessionMiddleware, adminAuth *middleware.AdminAuth) *Handler {
	return &Handler{
		service:   s,
		logger:    logger,
		session:   session,
		adminAuth: adminAuth,
	}
}

type planResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PriceCents  int64  `json:"price_cents"`
	Days        int    `json:"days"`
	Interval    string `json:"interval,omitempty"`
	Description string `json:"description,omitempty"`
	IsActive    bool   `json:"is_active"`
	IsPopular   bool   `json:"is_popular"`
}

func toPlanResponse(p model.Plan) planResponse {
	return planResponse{
		ID:          p.ID,
		Name:        p.Name,
		PriceCents:  p.PriceCents,
		Days:        p.Days,
		Interval:    p.Interval,
		Description: p.Description,
		IsActive:    p.IsActive,
		IsPopular:   p.IsPopular,
	}
}

// GetPlans возвращает активные планы для витрины.
func (h *Handler) GetPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.service.ActivePlans(r.Context())
	if err != nil {
		h.logger.Error("get plans error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]planResponse, 0, len(plans))
	for _, p := range plans {
		resp = append(resp, toPlanResponse(p))
	}

	writeJSON(w, h.logger, resp)
}

type rankedResponse struct {
	WhatsApp string `json:"whatsapp"`
	Name     string `json:"name"`
	Sales    int    `json:"sales"`
	Rank     string `json:"rank"`
}

// GetLeaderboard возвращает таблицу лидеров продавцов.
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	ranked, err := h.service.Leaderboard(r.Context())
	if err != nil {
		h.logger.Error("get leaderboard error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]rankedResponse, 0, len(ranked))
	for _, rr := range ranked {
		resp = append(resp, rankedResponse{
			WhatsApp: rr.WhatsApp,
			Name:     rr.Name,
			Sales:    rr.Sales,
			Rank:     string(rr.Rank),
		})
	}

	writeJSON(w, h.logger, resp)
}

type messageResponse struct {
	ID        int64  `json:"id"`
	Sender    string `json:"sender"`
	Body      string `json:"body"`
	Kind      string `json:"kind"`
	CreatedAt string `json:"created_at"`
}

func toMessageResponses(msgs []model.Message) []messageResponse {
	resp := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		resp = append(resp, messageResponse{
			ID:        m.ID,
			Sender:    string(m.Sender),
			Body:      m.Body,
			Kind:      string(m.Kind),
			CreatedAt: m.CreatedAt.Format(time.RFC3339),
		})
	}
	return resp
}

// GetMessages возвращает журнал чата текущей сессии.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := middleware.GetSessionIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	msgs, err := h.service.Messages(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("get messages error", zap.Error(err), zap.String("sessionID", sessionID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.logger, toMessageResponses(msgs))
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

// PostMessage принимает сообщение посетителя и возвращает ответы бота.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := middleware.GetSessionIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	msgs, err := h.service.HandleMessage(r.Context(), sessionID, req.Text)
	if err != nil {
		h.logger.Error("handle message error", zap.Error(err), zap.String("sessionID", sessionID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.logger, toMessageResponses(msgs))
}

type selectPlanRequest struct {
	PlanID string `json:"plan_id"`
}

// SelectPlan запускает диалог оформления заказа для выбранного плана.
func (h *Handler) SelectPlan(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := middleware.GetSessionIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req selectPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.PlanID == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	msgs, err := h.service.SelectPlan(r.Context(), sessionID, req.PlanID)
	if err != nil {
		if errors.Is(err, repository.ErrPlanNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("select plan error", zap.Error(err), zap.String("planID", req.PlanID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.logger, toMessageResponses(msgs))
}

type checkoutResponse struct {
	PixKey      string `json:"pix_key"`
	WhatsAppURL string `json:"whatsapp_url"`
}

// Checkout возвращает данные для оплаты последнего оформленного заказа сессии.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := middleware.GetSessionIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	info, err := h.service.Checkout(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, service.ErrNoOrder) {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
		h.logger.Error("checkout error", zap.Error(err), zap.String("sessionID", sessionID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.logger, checkoutResponse{
		PixKey:      info.PixKey,
		WhatsAppURL: info.WhatsAppURL,
	})
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encode response error", zap.Error(err))
	}
}
