package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pedrobots/bluebot-rental/internal/model"
	"github.com/pedrobots/bluebot-rental/internal/repository"
	"github.com/pedrobots/bluebot-rental/internal/service"
)

type loginRequest struct {
	Pin string `json:"pin"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// AdminLogin проверяет PIN и выдаёт токен доступа к админ-панели.
func (h *Handler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Pin == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.AdminLogin(r.Context(), req.Pin); err != nil {
		if errors.Is(err, service.ErrInvalidPin) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("admin login error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	token, err := h.adminAuth.IssueToken()
	if err != nil {
		h.logger.Error("issue admin token error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.logger, loginResponse{Token: token})
}

// AdminGetPlans возвращает все планы, включая скрытые с витрины.
func (h *Handler) AdminGetPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.service.AllPlans(r.Context())
	if err != nil {
		h.logger.Error("admin get plans error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]planResponse, 0, len(plans))
	for _, p := range plans {
		resp = append(resp, toPlanResponse(p))
	}

	writeJSON(w, h.logger, resp)
}

type planRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PriceCents  int64  `json:"price_cents"`
	Days        int    `json:"days"`
	Interval    string `json:"interval"`
	Description string `json:"description"`
	IsActive    bool   `json:"is_active"`
	IsPopular   bool   `json:"is_popular"`
}

func (req planRequest) toModel() model.Plan {
	return model.Plan{
		ID:          req.ID,
		Name:        req.Name,
		PriceCents:  req.PriceCents,
		Days:        req.Days,
		Interval:    req.Interval,
		Description: req.Description,
		IsActive:    req.IsActive,
		IsPopular:   req.IsPopular,
	}
}

// AdminCreatePlan создаёт новый тарифный план.
func (h *Handler) AdminCreatePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.CreatePlan(r.Context(), req.toModel()); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidPlan):
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		case errors.Is(err, repository.ErrPlanExists):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		default:
			h.logger.Error("admin create plan error", zap.Error(err), zap.String("planID", req.ID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusCreated)
}

// AdminUpdatePlan обновляет существующий тарифный план.
func (h *Handler) AdminUpdatePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	req.ID = chi.URLParam(r, "id")

	if err := h.service.UpdatePlan(r.Context(), req.toModel()); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidPlan):
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		case errors.Is(err, repository.ErrPlanNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		default:
			h.logger.Error("admin update plan error", zap.Error(err), zap.String("planID", req.ID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}

// AdminDeletePlan удаляет тарифный план. История заказов сохраняется.
func (h *Handler) AdminDeletePlan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeletePlan(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrPlanNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("admin delete plan error", zap.Error(err), zap.String("planID", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type settingsResponse struct {
	StoreName   string `json:"store_name"`
	OwnerName   string `json:"owner_name"`
	OwnerNumber string `json:"owner_number"`
	PixKey      string `json:"pix_key"`
	SiteURL     string `json:"site_url"`
}

// AdminGetSettings возвращает настройки магазина. Хэш PIN наружу не отдаётся.
func (h *Handler) AdminGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.GetSettings(r.Context())
	if err != nil {
		h.logger.Error("admin get settings error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.logger, settingsResponse{
		StoreName:   settings.StoreName,
		OwnerName:   settings.OwnerName,
		OwnerNumber: settings.OwnerNumber,
		PixKey:      settings.PixKey,
		SiteURL:     settings.SiteURL,
	})
}

type settingsRequest struct {
	StoreName   string `json:"store_name"`
	OwnerName   string `json:"owner_name"`
	OwnerNumber string `json:"owner_number"`
	PixKey      string `json:"pix_key"`
	SiteURL     string `json:"site_url"`
	NewPin      string `json:"new_pin"`
}

// AdminUpdateSettings применяет изменение настроек магазина.
func (h *Handler) AdminUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	upd := model.SettingsUpdate{
		StoreName:   req.StoreName,
		OwnerName:   req.OwnerName,
		OwnerNumber: req.OwnerNumber,
		PixKey:      req.PixKey,
		SiteURL:     req.SiteURL,
		NewPin:      req.NewPin,
	}

	if err := h.service.UpdateSettings(r.Context(), upd); err != nil {
		if errors.Is(err, service.ErrInvalidSettings) {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		h.logger.Error("admin update settings error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

type resellerResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	WhatsApp  string `json:"whatsapp"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
}

func toResellerResponse(res model.Reseller) resellerResponse {
	return resellerResponse{
		ID:        res.ID,
		Name:      res.Name,
		WhatsApp:  res.WhatsApp,
		IsActive:  res.IsActive,
		CreatedAt: res.CreatedAt.Format(time.RFC3339),
	}
}

// AdminGetResellers возвращает ростер продавцов.
func (h *Handler) AdminGetResellers(w http.ResponseWriter, r *http.Request) {
	resellers, err := h.service.Resellers(r.Context())
	if err != nil {
		h.logger.Error("admin get resellers error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]resellerResponse, 0, len(resellers))
	for _, res := range resellers {
		resp = append(resp, toResellerResponse(res))
	}

	writeJSON(w, h.logger, resp)
}

type resellerRequest struct {
	Name     string `json:"name"`
	WhatsApp string `json:"whatsapp"`
}

// AdminAddReseller добавляет продавца в ростер.
func (h *Handler) AdminAddReseller(w http.ResponseWriter, r *http.Request) {
	var req resellerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	res, err := h.service.AddReseller(r.Context(), req.Name, req.WhatsApp)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidReseller):
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		case errors.Is(err, repository.ErrResellerExists):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		case errors.Is(err, repository.ErrResellerLimit):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		default:
			h.logger.Error("admin add reseller error", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(toResellerResponse(*res)); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}

// AdminRemoveReseller удаляет продавца из ростера.
func (h *Handler) AdminRemoveReseller(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.RemoveReseller(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrResellerNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("admin remove reseller error", zap.Error(err), zap.Int64("resellerID", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type orderResponse struct {
	ID             int64  `json:"id"`
	CustomerName   string `json:"customer_name"`
	WhatsAppNumber string `json:"whatsapp"`
	Purpose        string `json:"purpose"`
	ProjectName    string `json:"project_name"`
	GroupLink      string `json:"group_link"`
	PlanID         string `json:"plan_id"`
	Free           bool   `json:"free"`
	CreatedAt      string `json:"created_at"`
}

// AdminGetOrders возвращает историю заказов, новые первыми.
func (h *Handler) AdminGetOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.Orders(r.Context())
	if err != nil {
		h.logger.Error("admin get orders error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, orderResponse{
			ID:             o.ID,
			CustomerName:   o.CustomerName,
			WhatsAppNumber: o.WhatsAppNumber,
			Purpose:        o.Purpose,
			ProjectName:    o.ProjectName,
			GroupLink:      o.GroupLink,
			PlanID:         o.PlanID,
			Free:           o.Free,
			CreatedAt:      o.CreatedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, h.logger, resp)
}

// AdminExportOrders выгружает историю заказов в CSV.
func (h *Handler) AdminExportOrders(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="orders.csv"`)

	if err := h.service.WriteOrdersCSV(r.Context(), w); err != nil {
		h.logger.Error("admin export orders error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}
