// Package chatflow реализует конечный автомат диалога оформления заказа.
//
// Диалог состоит из фиксированной последовательности вопросов: выбор плана
// запускает автомат, каждый непустой ответ клиента продвигает его на один шаг,
// последний шаг завершается оформлением заказа. Автомат не хранит состояние
// сам: текущий шаг и черновик заказа передаются на вход и возвращаются
// обновлёнными, сохранение — забота вызывающего слоя.
package chatflow

import (
	"fmt"
	"strings"

	"github.com/pedrobots/bluebot-rental/internal/model"
)

// Step — шаг диалога оформления заказа.
type Step int

const (
	// StepIdle — диалог не запущен: свободный текст уходит внешнему ответчику.
	StepIdle Step = iota
	StepName
	StepWhatsApp
	StepPurpose
	StepGroupName
	StepGroupLink
	StepConfirm
)

// Фразы, по которым бот узнаёт владельца в свободном тексте.
// Используются только когда секретный токен владельца не настроен.
var ownerPhrases = []string{
	"eu sou o dono",
	"sou pedro bots",
	"meu criador",
}

// Store — параметры магазина, от которых зависят тексты и распознавание владельца.
type Store struct {
	OwnerName   string
	OwnerNumber string
	// OwnerToken — секретная команда владельца. Если задана, обход диалога
	// срабатывает только по ней; подстрочный поиск имени отключается.
	OwnerToken string
}

// Reply — сообщение бота, которое нужно добавить в журнал чата.
type Reply struct {
	Body string
	Kind model.MessageKind
}

// Finalization описывает оформленный заказ: заполненный черновик, признак
// бесплатной активации владельцем и текстовый блок заказа для передачи
// в WhatsApp владельца.
type Finalization struct {
	Draft   model.DraftOrder
	Free    bool
	Summary string
}

// Outcome — результат обработки одного сообщения пользователя: ответы бота,
// новый шаг, обновлённый черновик и, если диалог завершился, оформление заказа.
type Outcome struct {
	Replies   []Reply
	Step      Step
	Draft     model.DraftOrder
	Finalized *Finalization
}

// Flow — конечный автомат диалога оформления заказа для одного магазина.
type Flow struct {
	store Store
}

// New создаёт автомат с параметрами магазина.
func New(store Store) *Flow {
	return &Flow{store: store}
}

// Start возвращает приветственный вопрос после выбора плана. Вызывающий слой
// обязан перевести сессию на шаг StepName и обнулить черновик.
func (f *Flow) Start(plan *model.Plan) Reply {
	return Reply{
		Body: fmt.Sprintf("Excelente escolha! O plano *%s* para %d dias. ⏤͟͟͞͞ 💙\n\nPara gerar o seu pedido, responda as perguntas abaixo:\n\n👤 Qual seu NOME COMPLETO?", plan.Name, plan.Days),
		Kind: model.KindText,
	}
}

// Handle обрабатывает одно сообщение пользователя на шагах 1–6.
//
// Пустой или пробельный ввод игнорируется целиком: шаг не меняется, ответы не
// эмитятся. Любой непустой ввод продвигает автомат без валидации содержимого.
// Проверка на владельца выполняется до разбора шага и срабатывает на шагах 1–5.
func (f *Flow) Handle(step Step, draft model.DraftOrder, plan *model.Plan, input string) Outcome {
	out := Outcome{Step: step, Draft: draft}

	if strings.TrimSpace(input) == "" {
		return out
	}

	if step >= StepName && step < StepConfirm && f.isOwner(input) {
		out.Replies = append(out.Replies, Reply{
			Body: fmt.Sprintf("Opa, %s! Reconhecido. 👑 Ativação gratuita liberada pra você. Já vou pular pro final!", f.store.OwnerName),
			Kind: model.KindText,
		})

		free := draft
		free.CustomerName = f.store.OwnerName
		out.finalize(f.store, free, plan, true)
		return out
	}

	switch step {
	case StepName:
		out.Draft.CustomerName = input
		out.reply("📱 Ótimo! Agora informe seu WHATSAPP com DDD (Ex: 5599981175724):")
		out.Step = StepWhatsApp
	case StepWhatsApp:
		out.Draft.WhatsAppNumber = input
		out.reply("🎯 Qual será o MODO DE USO do Bot? (Ex: Administração, Vendas, Jogos, etc):")
		out.Step = StepPurpose
	case StepPurpose:
		out.Draft.Purpose = input
		out.reply("👥 Qual será o NOME DO GRUPO onde o bot será usado?")
		out.Step = StepGroupName
	case StepGroupName:
		out.Draft.ProjectName = input
		out.reply("🔗 Agora envie o LINK DO GRUPO (onde o bot será adicionado):")
		out.Step = StepGroupLink
	case StepGroupLink:
		out.Draft.GroupLink = input
		out.reply(fmt.Sprintf("⚠️ IMPORTANTE:\n\nAdicione o número do Bot no grupo agora:\n👉 *+%s*\n\nMe avise com um \"OK\" quando tiver adicionado!", f.store.OwnerNumber))
		out.Step = StepConfirm
	case StepConfirm:
		// Содержимое подтверждения не проверяется: любой непустой ввод завершает заказ.
		out.finalize(f.store, out.Draft, plan, false)
	}

	return out
}

func (f *Flow) isOwner(input string) bool {
	lower := strings.ToLower(input)

	if f.store.OwnerToken != "" {
		return strings.Contains(lower, strings.ToLower(f.store.OwnerToken))
	}

	if f.store.OwnerName != "" && strings.Contains(lower, strings.ToLower(f.store.OwnerName)) {
		return true
	}

	for _, phrase := range ownerPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}

	return false
}

func (o *Outcome) reply(body string) {
	o.Replies = append(o.Replies, Reply{Body: body, Kind: model.KindText})
}

// finalize завершает диалог. Без выбранного плана заказ не оформляется, но шаг
// всё равно сбрасывается в StepIdle — защитный случай, в нормальном сценарии
// недостижимый, поскольку диалог запускается именно выбором плана.
func (o *Outcome) finalize(store Store, draft model.DraftOrder, plan *model.Plan, free bool) {
	o.Step = StepIdle
	o.Draft = model.DraftOrder{}

	if plan == nil {
		return
	}

	fin := &Finalization{
		Draft:   draft,
		Free:    free,
		Summary: FormatSummary(draft, plan),
	}

	if free {
		o.Replies = append(o.Replies, Reply{
			Body: fmt.Sprintf("👑 *PEDIDO ELITE (DONO) ATIVADO!* ⏤͟͟͞͞ 💙\n\nComo você é o %s, sua ativação é imediata e gratuita.\n\nEnviando comando no grupo: `.addaluguel %d`", store.OwnerName, plan.Days),
			Kind: model.KindText,
		})
	} else {
		o.Replies = append(o.Replies, Reply{
			Body: fmt.Sprintf("✅ Pedido Gerado com Sucesso!\n\nValor: R$ %s\n\nClique no botão abaixo para copiar a chave Pix e ser direcionado ao WhatsApp do %s para enviar seu pedido.", FormatPrice(plan.PriceCents), store.OwnerName),
			Kind: model.KindPix,
		})
	}

	o.Finalized = fin
}

// FormatSummary собирает текстовый блок заказа для личного сообщения владельцу.
func FormatSummary(draft model.DraftOrder, plan *model.Plan) string {
	return fmt.Sprintf("🔔 *NOVO PEDIDO - BLUE ALUGUEL*\n\n📋 *Dados do Cliente:*\n👤 *Nome:* %s\n📱 *WhatsApp:* %s\n🎯 *Finalidade:* %s\n👥 *Grupo:* %s\n🔗 *Link:* %s\n\n📦 *Plano:* %s (%d dias)\n⚡ *Comando:* `.addaluguel %d`",
		draft.CustomerName,
		draft.WhatsAppNumber,
		draft.Purpose,
		draft.ProjectName,
		draft.GroupLink,
		plan.Name,
		plan.Days,
		plan.Days,
	)
}

// FormatPrice форматирует цену в центах по бразильской локали: запятая как
// десятичный разделитель, всегда два знака после неё.
func FormatPrice(cents int64) string {
	return fmt.Sprintf("%d,%02d", cents/100, cents%100)
}
