package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// WebhookHandler — обработчик действия "webhook".
//
// Выполняет исходящий HTTP-запрос с ограничением по времени (таймаут
// приходит через ctx от Executor). Транспортная ошибка — обычная ошибка
// действия и никогда не прерывает обход переходов.
//
// Config:
//   - url (string): адрес (обязательно)
//   - method (string): HTTP-метод. Default: POST
//   - headers (map[string]any): заголовки
//   - body (any): тело запроса (сериализуется в JSON)
//
// Output:
//   - status_code (int): HTTP-код ответа
//   - body (any): тело ответа (JSON или строка)
type WebhookHandler struct {
	Client *http.Client
}

// Execute выполняет webhook запрос.
func (h *WebhookHandler) Execute(ctx context.Context, config map[string]any) (map[string]any, error) {
	url := getString(config, "url", "")
	if url == "" {
		return nil, fmt.Errorf("%w: url", ErrMissingConfig)
	}
	method := getString(config, "method", http.MethodPost)

	var bodyReader io.Reader
	if body, ok := config["body"]; ok && body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: marshal body: %v", ErrWebhookRequest, err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrWebhookRequest, err)
	}

	if headers, ok := config["headers"].(map[string]any); ok {
		for key, value := range headers {
			if s, ok := value.(string); ok {
				req.Header.Set(key, s)
			}
		}
	}
	if bodyReader != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWebhookRequest, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrWebhookRequest, err)
	}

	// Пробуем распарсить JSON, иначе строка
	var parsed any
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		parsed = string(respBody)
	}

	output := map[string]any{
		"status_code": resp.StatusCode,
		"body":        parsed,
	}

	if resp.StatusCode >= 400 {
		return output, fmt.Errorf("%w: HTTP %d", ErrWebhookRequest, resp.StatusCode)
	}
	return output, nil
}
