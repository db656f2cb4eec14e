// Package completion issues the single chat-completion call to whichever
// upstream a resolved provider config points at. All three provider shapes
// (free, openai, custom) speak the same OpenAI-compatible wire format, so
// one client covers them all.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/howard-nolan/polishgw/internal/provider"
)

// systemPrompt instructs the model to rewrite the user's plain work
// description as three STAR-format resume bullet variants and reply with a
// single JSON object. Kept verbatim from the product — the parser and the
// UI both depend on the standard/datadriven/expert keys it demands.
const systemPrompt = `你是一位来自一线互联网大厂（如 Google, 阿里, 字节）的资深技术面试官。你的目标是将候选人平淡的描述改写为强有力的简历 Bullet Points。

你必须遵循以下规则：
1. 必须使用强动词开头（如：重构、主导、设计、优化、推动、落地、负责、搭建、构建）
2. 必须包含技术关键词
3. 遵循 STAR 法则（Situation, Task, Action, Result）
4. 语言专业、简洁有力

请根据用户输入，生成三个版本的简历话术：

**版本A - 标准专业版**：语言简练、用词专业，突出技术能力。

**版本B - 数据驱动版**：重点强调量化成果。你必须大胆假设并插入占位符如 [X]%、[Y]ms、[Z]倍 等，提示用户回填真实数据。例如："将响应时间从 [X]ms 降低至 [Y]ms"。

**版本C - 专家/架构师版**：强调技术深度、系统设计能力、商业价值和团队影响力。适合高级工程师或架构师级别。

请严格按照以下 JSON 格式返回，不要添加任何其他内容：
{
  "standard": "版本A的内容",
  "datadriven": "版本B的内容",
  "expert": "版本C的内容"
}`

// userPromptPrefix frames the user turn around the raw description.
const userPromptPrefix = "请润色以下工作描述：\n\n"

// ---------------------------------------------------------------------------
// Upstream wire types (unexported)
// ---------------------------------------------------------------------------

// chatRequest is the OpenAI-format request body every upstream accepts.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

// chatMessage is one role + content pair.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse holds the only parts of the upstream response we read:
// choices[0].message.content. Everything else is ignored.
type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// ---------------------------------------------------------------------------
// Error classification
// ---------------------------------------------------------------------------

// StatusError is a classified upstream failure. Status is the HTTP status
// the gateway should respond with, Message is the human-readable string
// the caller sees. The handler passes both straight into the error
// envelope, alongside whatever usage info it already computed.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream: %s (status %d)", e.Message, e.Status)
}

// classify maps an upstream HTTP status to the error the caller should
// see. 429/402/401 pass through with specific messages; anything else is
// a generic 500-class "service unavailable" — the caller can't do
// anything about a 503 from the model host.
func classify(upstreamStatus int) *StatusError {
	switch upstreamStatus {
	case http.StatusTooManyRequests:
		return &StatusError{Status: http.StatusTooManyRequests, Message: "too many requests, retry later"}
	case http.StatusPaymentRequired:
		return &StatusError{Status: http.StatusPaymentRequired, Message: "AI service quota exhausted, retry later"}
	case http.StatusUnauthorized:
		return &StatusError{Status: http.StatusUnauthorized, Message: "invalid API key, check your credentials"}
	default:
		return &StatusError{Status: http.StatusInternalServerError, Message: "AI service unavailable, retry later"}
	}
}

// errEmptyResponse covers the 2xx-but-no-content case: the call "worked"
// but there's nothing to show the user, so it's a 500-class failure.
var errEmptyResponse = &StatusError{
	Status:  http.StatusInternalServerError,
	Message: "empty response from AI service",
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// Client issues chat-completion calls. One instance is shared across
// requests; the per-request endpoint, key, and model all come from the
// resolved provider config.
type Client struct {
	httpClient *http.Client
}

// NewClient wraps an *http.Client. Taking the client as a parameter lets
// main.go set the timeout (the only bound on a hung upstream — there are
// no retries) and lets tests substitute a recorder.
func NewClient(httpClient *http.Client) *Client {
	return &Client{httpClient: httpClient}
}

// Complete sends the user's trimmed input to cfg's endpoint and returns
// the raw text of the model's reply. Exactly one attempt: transient
// upstream failures surface directly as classified *StatusError values.
func (c *Client) Complete(ctx context.Context, cfg *provider.Config, input string) (string, error) {
	// Step 1: Build the request body — fixed system prompt plus the
	// user's description as the user turn.
	body, err := json.Marshal(chatRequest{
		Model: cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPromptPrefix + strings.TrimSpace(input)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	// Step 2: Build the HTTP request. Bearer auth works for every
	// OpenAI-compatible host, which is the whole reason the "custom"
	// provider can point anywhere.
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	// Step 3: Make the call.
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("sending request to %s provider: %w", cfg.Name, err)
	}
	defer httpResp.Body.Close()

	// Step 4: Classify non-2xx outcomes. The raw upstream body goes to
	// the log for debugging; the caller only sees the classified message.
	if httpResp.StatusCode/100 != 2 {
		errBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		log.Printf("upstream %s error: status %d, body: %s", cfg.Name, httpResp.StatusCode, errBody)
		return "", classify(httpResp.StatusCode)
	}

	// Step 5: Decode and extract the message content.
	var chatResp chatResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("decoding %s response: %w", cfg.Name, err)
	}

	if len(chatResp.Choices) == 0 || chatResp.Choices[0].Message.Content == "" {
		return "", errEmptyResponse
	}

	return chatResp.Choices[0].Message.Content, nil
}
