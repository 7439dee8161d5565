// Package gemini предоставляет клиент внешнего генеративного API, отвечающего
// на свободный текст клиента вне сценария оформления заказа.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// DefaultBaseURL — адрес Generative Language API по умолчанию.
const DefaultBaseURL = "https://generativelanguage.googleapis.com"

// DefaultModel — модель, используемая при пустой настройке.
const DefaultModel = "gemini-2.0-flash"

const systemInstruction = `Você é o assistente oficial de vendas do %s. 💙
Sua missão é vender planos de aluguel do BLUE BOT de forma profissional, clara e persuasiva.
Cumprimente o cliente com entusiasmo, explique os benefícios do bot e peça para ele
escolher um dos planos na tela. Após a escolha, ele deve responder as perguntas do
formulário para gerar o pedido. Tom de voz amigável, "vibe" tecnológica. Use emojis azuis 💙.
Sempre incentive a finalização via Pix e o envio do comprovante para ativação imediata
via comando .addaluguel.`

// emptyReply возвращается, когда API ответил успешно, но без текста.
const emptyReply = "Olá! Sou o assistente do BLUE BOT. Como posso te ajudar? Escolha um plano na vitrine para começar! 💙"

// Client инкапсулирует HTTP-взаимодействие с генеративным API.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *retryablehttp.Client
}

// NewClient создаёт клиент генеративного API. Пустой baseURL и model
// заменяются значениями по умолчанию.
func NewClient(baseURL, apiKey, model string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = 10 * time.Second
	rc.Logger = nil

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: rc,
	}
}

type generateRequest struct {
	SystemInstruction content         `json:"system_instruction"`
	Contents          []content       `json:"contents"`
	GenerationConfig  *generateConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateConfig struct {
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// GenerateReply запрашивает у API ответ на сообщение клиента. storeName
// подставляется в системную инструкцию продавца. Любая ошибка возвращается
// вызывающему: подмена на детерминированный ответ — забота сервисного слоя.
func (c *Client) GenerateReply(ctx context.Context, userText, storeName string) (string, error) {
	if c == nil || c.apiKey == "" {
		return "", fmt.Errorf("gemini client not configured")
	}

	body := generateRequest{
		SystemInstruction: content{Parts: []part{{Text: fmt.Sprintf(systemInstruction, storeName)}}},
		Contents:          []content{{Parts: []part{{Text: userText}}}},
		GenerationConfig:  &generateConfig{Temperature: 0.7},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return emptyReply, nil
	}

	text := strings.TrimSpace(result.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return emptyReply, nil
	}

	return text, nil
}
