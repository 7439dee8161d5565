// Package model содержит доменные сущности сервиса аренды WhatsApp-ботов.
package model

import "time"

// Plan описывает тарифный план аренды бота. Цена хранится в центах.
type Plan struct {
	ID          string
	Name        string
	PriceCents  int64
	Days        int
	Interval    string
	Description string
	IsActive    bool
	IsPopular   bool
}

// Reseller представляет авторизованного продавца из ростера магазина.
type Reseller struct {
	ID        int64
	Name      string
	WhatsApp  string
	IsActive  bool
	CreatedAt time.Time
}

// Settings содержит настройки магазина, редактируемые из админ-панели.
type Settings struct {
	StoreName    string
	OwnerName    string
	OwnerNumber  string
	PixKey       string
	AdminPinHash []byte
	SiteURL      string
}

// SettingsUpdate описывает изменение настроек магазина.
// Пустой NewPin означает, что PIN остаётся прежним.
type SettingsUpdate struct {
	StoreName   string
	OwnerName   string
	OwnerNumber string
	PixKey      string
	SiteURL     string
	NewPin      string
}

// DraftOrder накапливает ответы клиента по шагам диалога оформления заказа.
type DraftOrder struct {
	CustomerName   string
	WhatsAppNumber string
	Purpose        string
	ProjectName    string
	GroupLink      string
}

// Order описывает оформленный заказ. Записи не изменяются и не удаляются.
type Order struct {
	ID             int64
	CustomerName   string
	WhatsAppNumber string
	Purpose        string
	ProjectName    string
	GroupLink      string
	PlanID         string
	Free           bool
	CreatedAt      time.Time
}

// MessageSender указывает автора сообщения в чате.
type MessageSender string

const (
	SenderUser MessageSender = "user"
	SenderBot  MessageSender = "bot"
)

// MessageKind определяет, как презентационный слой отображает сообщение.
type MessageKind string

const (
	// KindText — обычное текстовое сообщение.
	KindText MessageKind = "text"
	// KindPix — сообщение об оплате: фронтенд показывает ключ Pix и кнопку оформления.
	KindPix MessageKind = "pix"
	// KindHandoff — ссылка wa.me для передачи заказа владельцу.
	KindHandoff MessageKind = "handoff"
)

// Message — запись в журнале чата. Журнал только дополняется, порядок вставки равен порядку отображения.
type Message struct {
	ID        int64
	SessionID string
	Sender    MessageSender
	Body      string
	Kind      MessageKind
	CreatedAt time.Time
}

// ChatSession хранит состояние диалога оформления заказа для одного посетителя.
// LastSummary переживает сброс шага: он нужен на этапе оплаты уже после завершения диалога.
type ChatSession struct {
	ID             string
	Step           int
	SelectedPlanID string
	Draft          DraftOrder
	LastSummary    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RankLevel — уровень продавца в таблице лидеров.
type RankLevel string

const (
	RankOwner    RankLevel = "Dono"
	RankDiamond  RankLevel = "Diamante"
	RankPlatinum RankLevel = "Platina"
	RankGold     RankLevel = "Ouro"
	RankSilver   RankLevel = "Prata"
	RankBronze   RankLevel = "Bronze"
)

// RankedReseller — строка таблицы лидеров. Вычисляется по требованию и не сохраняется.
type RankedReseller struct {
	WhatsApp string
	Name     string
	Sales    int
	Rank     RankLevel
}

// CheckoutInfo — данные для завершения оплаты: ключ Pix и подготовленная ссылка
// на WhatsApp владельца с текстом заказа.
type CheckoutInfo struct {
	PixKey      string
	WhatsAppURL string
}
