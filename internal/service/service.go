// Package service реализует бизнес-логику сервиса аренды ботов.
package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/pedrobots/bluebot-rental/internal/chatflow"
	"github.com/pedrobots/bluebot-rental/internal/model"
	"github.com/pedrobots/bluebot-rental/internal/ranking"
	"github.com/pedrobots/bluebot-rental/internal/repository"
	"github.com/pedrobots/bluebot-rental/internal/validation"
)

// ErrInvalidPin возвращается при неверном PIN админ-панели.
var (
	ErrInvalidPin = errors.New("invalid admin pin")
	// ErrNoOrder возвращается при попытке оплаты без оформленного заказа в сессии.
	ErrNoOrder = errors.New("no finalized order in session")
	// ErrInvalidPlan возвращается при некорректных полях тарифного плана.
	ErrInvalidPlan = errors.New("invalid plan")
	// ErrInvalidReseller возвращается при некорректных данных продавца.
	ErrInvalidReseller = errors.New("invalid reseller")
	// ErrInvalidSettings возвращается при некорректном изменении настроек.
	ErrInvalidSettings = errors.New("invalid settings")
)

const defaultHandoffDelay = 3 * time.Second

// greeting — первое сообщение бота в новой сессии чата.
const greeting = "Opa! Sou o BLUE Bot Vendas. 💙\n\nAqui você pode escolher seu plano de aluguel de bot para WhatsApp.\n\nEscolha um plano na vitrine para começar o seu pedido!"

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	GetSettings(ctx context.Context) (*model.Settings, error)
	UpdateSettings(ctx context.Context, s model.Settings) error

	ListPlans(ctx context.Context, activeOnly bool) ([]model.Plan, error)
	GetPlan(ctx context.Context, id string) (*model.Plan, error)
	CreatePlan(ctx context.Context, p model.Plan) error
	UpdatePlan(ctx context.Context, p model.Plan) error
	DeletePlan(ctx context.Context, id string) error

	ListResellers(ctx context.Context) ([]model.Reseller, error)
	AddReseller(ctx context.Context, name, whatsapp string) (*model.Reseller, error)
	RemoveReseller(ctx context.Context, id int64) error

	CreateOrder(ctx context.Context, o model.Order) (int64, error)
	ListOrders(ctx context.Context) ([]model.Order, error)

	GetOrCreateSession(ctx context.Context, id string) (*model.ChatSession, bool, error)
	UpdateSession(ctx context.Context, s *model.ChatSession) error
	AppendMessage(ctx context.Context, m model.Message) (*model.Message, error)
	ListMessages(ctx context.Context, sessionID string) ([]model.Message, error)
}

// Responder описывает внешний генеративный API, отвечающий на свободный текст.
type Responder interface {
	GenerateReply(ctx context.Context, userText, storeName string) (string, error)
}

// Service содержит бизнес-логику сервиса аренды ботов.
type Service struct {
	repo         Repository
	responder    Responder
	logger       *zap.Logger
	ownerToken   string
	handoffDelay time.Duration
}

// NewService создаёт сервис с указанным репозиторием и внешним ответчиком.
// responder может быть nil: тогда свободный чат сразу отвечает резервной фразой.
func NewService(repo Repository, responder Responder, logger *zap.Logger, ownerToken string) *Service {
	return &Service{
		repo:         repo,
		responder:    responder,
		logger:       logger,
		ownerToken:   ownerToken,
		handoffDelay: defaultHandoffDelay,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// Messages возвращает журнал чата сессии, создавая сессию с приветствием
// при первом обращении.
func (s *Service) Messages(ctx context.Context, sessionID string) ([]model.Message, error) {
	if _, err := s.ensureSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.repo.ListMessages(ctx, sessionID)
}

func (s *Service) ensureSession(ctx context.Context, sessionID string) (*model.ChatSession, error) {
	session, created, err := s.repo.GetOrCreateSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if created {
		if _, err := s.appendBot(ctx, sessionID, greeting, model.KindText); err != nil {
			return nil, err
		}
	}

	return session, nil
}

func (s *Service) appendBot(ctx context.Context, sessionID, body string, kind model.MessageKind) (*model.Message, error) {
	return s.repo.AppendMessage(ctx, model.Message{
		SessionID: sessionID,
		Sender:    model.SenderBot,
		Body:      body,
		Kind:      kind,
	})
}

// SelectPlan запускает диалог оформления заказа для выбранного плана и
// возвращает добавленные сообщения бота.
func (s *Service) SelectPlan(ctx context.Context, sessionID, planID string) ([]model.Message, error) {
	plan, err := s.repo.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}

	session, err := s.ensureSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	session.SelectedPlanID = plan.ID
	session.Step = int(chatflow.StepName)
	session.Draft = model.DraftOrder{}
	if err := s.repo.UpdateSession(ctx, session); err != nil {
		return nil, err
	}

	reply := chatflow.New(s.flowStore(settings)).Start(plan)
	msg, err := s.appendBot(ctx, sessionID, reply.Body, reply.Kind)
	if err != nil {
		return nil, err
	}

	return []model.Message{*msg}, nil
}

func (s *Service) flowStore(settings *model.Settings) chatflow.Store {
	return chatflow.Store{
		OwnerName:   settings.OwnerName,
		OwnerNumber: settings.OwnerNumber,
		OwnerToken:  s.ownerToken,
	}
}

// HandleMessage обрабатывает сообщение посетителя: внутри диалога оформления
// продвигает автомат, вне его — спрашивает внешний ответчик. Возвращает
// добавленные сообщения бота. Пустой ввод игнорируется целиком.
func (s *Service) HandleMessage(ctx context.Context, sessionID, text string) ([]model.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	session, err := s.ensureSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.AppendMessage(ctx, model.Message{
		SessionID: sessionID,
		Sender:    model.SenderUser,
		Body:      text,
		Kind:      model.KindText,
	}); err != nil {
		return nil, err
	}

	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	if session.Step > int(chatflow.StepIdle) {
		return s.advanceFlow(ctx, session, settings, text)
	}

	return s.freeChat(ctx, sessionID, settings, text)
}

func (s *Service) advanceFlow(ctx context.Context, session *model.ChatSession, settings *model.Settings, text string) ([]model.Message, error) {
	var plan *model.Plan
	if session.SelectedPlanID != "" {
		p, err := s.repo.GetPlan(ctx, session.SelectedPlanID)
		switch {
		case err == nil:
			plan = p
		case errors.Is(err, repository.ErrPlanNotFound):
			// План мог быть удалён из админ-панели посреди диалога: тогда
			// завершение сработает как защитный no-op.
		default:
			return nil, err
		}
	}

	flow := chatflow.New(s.flowStore(settings))
	outcome := flow.Handle(chatflow.Step(session.Step), session.Draft, plan, text)

	session.Step = int(outcome.Step)
	session.Draft = outcome.Draft

	if outcome.Finalized != nil {
		order := model.Order{
			CustomerName:   outcome.Finalized.Draft.CustomerName,
			WhatsAppNumber: outcome.Finalized.Draft.WhatsAppNumber,
			Purpose:        outcome.Finalized.Draft.Purpose,
			ProjectName:    outcome.Finalized.Draft.ProjectName,
			GroupLink:      outcome.Finalized.Draft.GroupLink,
			PlanID:         plan.ID,
			Free:           outcome.Finalized.Free,
		}
		if _, err := s.repo.CreateOrder(ctx, order); err != nil {
			return nil, err
		}

		session.LastSummary = outcome.Finalized.Summary

		if outcome.Finalized.Free {
			s.scheduleHandoff(session.ID, settings.OwnerNumber, outcome.Finalized.Summary)
		}
	}

	if err := s.repo.UpdateSession(ctx, session); err != nil {
		return nil, err
	}

	appended := make([]model.Message, 0, len(outcome.Replies))
	for _, reply := range outcome.Replies {
		msg, err := s.appendBot(ctx, session.ID, reply.Body, reply.Kind)
		if err != nil {
			return nil, err
		}
		appended = append(appended, *msg)
	}

	return appended, nil
}

// scheduleHandoff откладывает передачу заказа владельцу на фиксированную
// задержку. Отмены нет: сообщение попадёт в журнал, даже если сессия к тому
// моменту сброшена.
func (s *Service) scheduleHandoff(sessionID, ownerNumber, summary string) {
	time.AfterFunc(s.handoffDelay, func() {
		handoff := HandoffURL(ownerNumber, summary+"\n\n(ATIVADO GRÁTIS PELO DONO)")
		if _, err := s.appendBot(context.Background(), sessionID, handoff, model.KindHandoff); err != nil && s.logger != nil {
			s.logger.Error("append handoff message", zap.Error(err), zap.String("sessionID", sessionID))
		}
	})
}

func (s *Service) freeChat(ctx context.Context, sessionID string, settings *model.Settings, text string) ([]model.Message, error) {
	reply := fallbackReply(settings)

	if s.responder != nil {
		generated, err := s.responder.GenerateReply(ctx, text, settings.StoreName)
		if err == nil {
			reply = generated
		} else if s.logger != nil {
			s.logger.Warn("free-text responder failed", zap.Error(err))
		}
	}

	msg, err := s.appendBot(ctx, sessionID, reply, model.KindText)
	if err != nil {
		return nil, err
	}

	return []model.Message{*msg}, nil
}

// fallbackReply — детерминированный ответ свободного чата при сбое внешнего API.
func fallbackReply(settings *model.Settings) string {
	return fmt.Sprintf("Meu Dono: %s Contato: +%s. Como posso te ajudar com os planos hoje? 💙", settings.OwnerName, settings.OwnerNumber)
}

// HandoffURL собирает ссылку WhatsApp с подготовленным текстом заказа.
func HandoffURL(ownerNumber, text string) string {
	return "https://api.whatsapp.com/send?phone=" + url.QueryEscape(ownerNumber) + "&text=" + url.QueryEscape(text)
}

// Checkout возвращает данные для оплаты последнего оформленного заказа сессии.
func (s *Service) Checkout(ctx context.Context, sessionID string) (*model.CheckoutInfo, error) {
	session, err := s.ensureSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if session.LastSummary == "" {
		return nil, ErrNoOrder
	}

	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	return &model.CheckoutInfo{
		PixKey:      settings.PixKey,
		WhatsAppURL: HandoffURL(settings.OwnerNumber, session.LastSummary),
	}, nil
}

// Leaderboard строит таблицу лидеров по текущим настройкам, ростеру и заказам.
func (s *Service) Leaderboard(ctx context.Context) ([]model.RankedReseller, error) {
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	resellers, err := s.repo.ListResellers(ctx)
	if err != nil {
		return nil, err
	}

	orders, err := s.repo.ListOrders(ctx)
	if err != nil {
		return nil, err
	}

	return ranking.Build(*settings, resellers, orders), nil
}

// ActivePlans возвращает планы, отображаемые на витрине.
func (s *Service) ActivePlans(ctx context.Context) ([]model.Plan, error) {
	return s.repo.ListPlans(ctx, true)
}

// AllPlans возвращает все планы для админ-панели.
func (s *Service) AllPlans(ctx context.Context) ([]model.Plan, error) {
	return s.repo.ListPlans(ctx, false)
}

// AdminLogin проверяет PIN админ-панели.
func (s *Service) AdminLogin(ctx context.Context, pin string) error {
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword(settings.AdminPinHash, []byte(pin)); err != nil {
		return ErrInvalidPin
	}

	return nil
}

func validatePlan(p model.Plan) error {
	if p.ID == "" || p.Name == "" {
		return fmt.Errorf("%w: id and name are required", ErrInvalidPlan)
	}
	if p.PriceCents < 0 {
		return fmt.Errorf("%w: negative price", ErrInvalidPlan)
	}
	if p.Days <= 0 {
		return fmt.Errorf("%w: days must be positive", ErrInvalidPlan)
	}
	return nil
}

// CreatePlan создаёт тарифный план.
func (s *Service) CreatePlan(ctx context.Context, p model.Plan) error {
	if err := validatePlan(p); err != nil {
		return err
	}
	return s.repo.CreatePlan(ctx, p)
}

// UpdatePlan обновляет тарифный план.
func (s *Service) UpdatePlan(ctx context.Context, p model.Plan) error {
	if err := validatePlan(p); err != nil {
		return err
	}
	return s.repo.UpdatePlan(ctx, p)
}

// DeletePlan удаляет тарифный план. История заказов не затрагивается.
func (s *Service) DeletePlan(ctx context.Context, id string) error {
	return s.repo.DeletePlan(ctx, id)
}

// GetSettings возвращает настройки магазина.
func (s *Service) GetSettings(ctx context.Context) (*model.Settings, error) {
	return s.repo.GetSettings(ctx)
}

// UpdateSettings применяет изменение настроек. Номер владельца нормализуется
// до цифр; непустой NewPin проверяется и перехэшируется.
func (s *Service) UpdateSettings(ctx context.Context, upd model.SettingsUpdate) error {
	current, err := s.repo.GetSettings(ctx)
	if err != nil {
		return err
	}

	next := model.Settings{
		StoreName:    upd.StoreName,
		OwnerName:    upd.OwnerName,
		OwnerNumber:  validation.NormalizePhone(upd.OwnerNumber),
		PixKey:       upd.PixKey,
		AdminPinHash: current.AdminPinHash,
		SiteURL:      upd.SiteURL,
	}

	if next.StoreName == "" || next.OwnerName == "" || next.OwnerNumber == "" {
		return fmt.Errorf("%w: store name, owner name and owner number are required", ErrInvalidSettings)
	}

	if upd.NewPin != "" {
		if !validation.IsValidPin(upd.NewPin) {
			return fmt.Errorf("%w: pin must be at least four digits", ErrInvalidSettings)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(upd.NewPin), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash pin: %w", err)
		}
		next.AdminPinHash = hash
	}

	return s.repo.UpdateSettings(ctx, next)
}

// Resellers возвращает ростер продавцов.
func (s *Service) Resellers(ctx context.Context) ([]model.Reseller, error) {
	return s.repo.ListResellers(ctx)
}

// AddReseller добавляет продавца. Номер нормализуется до цифр, ростер
// ограничен десятью записями на уровне репозитория.
func (s *Service) AddReseller(ctx context.Context, name, whatsapp string) (*model.Reseller, error) {
	normalized := validation.NormalizePhone(whatsapp)
	if name == "" || normalized == "" {
		return nil, fmt.Errorf("%w: name and whatsapp are required", ErrInvalidReseller)
	}

	return s.repo.AddReseller(ctx, name, normalized)
}

// RemoveReseller удаляет продавца из ростера.
func (s *Service) RemoveReseller(ctx context.Context, id int64) error {
	return s.repo.RemoveReseller(ctx, id)
}

// Orders возвращает историю заказов, новые первыми.
func (s *Service) Orders(ctx context.Context) ([]model.Order, error) {
	return s.repo.ListOrders(ctx)
}

// WriteOrdersCSV выгружает историю заказов в CSV.
func (s *Service) WriteOrdersCSV(ctx context.Context, w io.Writer) error {
	orders, err := s.repo.ListOrders(ctx)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)

	header := []string{"id", "customer_name", "whatsapp", "purpose", "project_name", "group_link", "plan_id", "free", "created_at"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, o := range orders {
		record := []string{
			strconv.FormatInt(o.ID, 10),
			o.CustomerName,
			o.WhatsAppNumber,
			o.Purpose,
			o.ProjectName,
			o.GroupLink,
			o.PlanID,
			strconv.FormatBool(o.Free),
			o.CreatedAt.Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	return nil
}
