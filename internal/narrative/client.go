package narrative

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	mlErrors "github.com/ezoic/marketlens/pkg/errors"
	"github.com/ezoic/marketlens/pkg/log"
)

// Defaults for the hosted chat-completion service.
const (
	DefaultBaseURL     = "https://api.groq.com/openai"
	DefaultModel       = "mixtral-8x7b-32768"
	DefaultTemperature = 0.5
	DefaultTimeout     = 60 * time.Second

	completionsPath = "/v1/chat/completions"
	maxErrorBody    = 4096
)

// ClientConfig configures a ChatClient. Zero values take the defaults.
type ClientConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration

	// BreakerFailures is the number of consecutive failures that opens the
	// breaker; BreakerCooldown is how long it stays open.
	BreakerFailures uint32
	BreakerCooldown time.Duration

	HTTPClient *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// StatusError is a non-2xx answer from the service.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("narrative: service returned %d: %s", e.StatusCode, e.Message)
}

// ChatClient calls an OpenAI-compatible chat completions endpoint. Each
// Summarize is a single attempt; repeated failures open a circuit breaker
// that rejects calls without touching the network until it cools down.
type ChatClient struct {
	cfg    ClientConfig
	http   *http.Client
	cb     *gobreaker.CircuitBreaker[string]
	logger log.Logger
}

// NewChatClient returns a client for cfg. An empty API key is an error.
func NewChatClient(cfg ClientConfig) (*ChatClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, mlErrors.NewValueError("narrative.NewChatClient", "API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 3
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = time.Minute
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	logger := log.GetLoggerWithName("narrative")
	failures := cfg.BreakerFailures
	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "narrative",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &ChatClient{cfg: cfg, http: httpClient, cb: cb, logger: logger}, nil
}

// Model returns the configured model name.
func (c *ChatClient) Model() string { return c.cfg.Model }

// BreakerState returns the circuit breaker state.
func (c *ChatClient) BreakerState() gobreaker.State { return c.cb.State() }

// Summarize sends req and returns the first choice's content. Payload
// validation failures are returned before any request is made and do not
// count against the breaker.
func (c *ChatClient) Summarize(ctx context.Context, req Request) (string, error) {
	prompt, err := BuildPrompt(req)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: prompt},
		},
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return "", mlErrors.Wrap(err, "encode chat request")
	}

	start := time.Now()
	text, err := c.cb.Execute(func() (string, error) {
		return c.post(ctx, body)
	})
	if err != nil {
		c.logger.Warn("Chat completion failed",
			log.DurationMsKey, time.Since(start).Milliseconds(),
			log.ErrorKey, err.Error())
		return "", mlErrors.Wrap(err, "chat completion")
	}
	c.logger.Debug("Chat completion",
		log.ModelNameKey, c.cfg.Model,
		log.DurationMsKey, time.Since(start).Milliseconds())
	return text, nil
}

func (c *ChatClient) post(ctx context.Context, body []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+completionsPath, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := strings.TrimSpace(string(raw))
		var decoded chatResponse
		if json.Unmarshal(raw, &decoded) == nil && decoded.Error != nil && decoded.Error.Message != "" {
			msg = decoded.Error.Message
		}
		return "", &StatusError{StatusCode: resp.StatusCode, Message: msg}
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", mlErrors.Wrap(err, "decode chat response")
	}
	if len(decoded.Choices) == 0 {
		return "", mlErrors.New("chat response has no choices")
	}
	return decoded.Choices[0].Message.Content, nil
}

// BuildPrompt renders the user message: the instruction followed by the
// payload as indented JSON.
func BuildPrompt(req Request) (string, error) {
	if req.Payload == nil {
		return req.Instruction, nil
	}
	if err := checkFinite(req.Payload); err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(req.Payload, "", "  ")
	if err != nil {
		return "", mlErrors.Wrap(err, "encode narrative payload")
	}
	return strings.TrimRight(req.Instruction, "\n") + "\n\nData:\n" + string(data), nil
}
