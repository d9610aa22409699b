package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"

	"github.com/haresh-sai06/rapid100/pkg/common"
)

var (
	llmRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "triage",
		Name:      "llm_request_seconds",
		Help:      "Latency of Ollama triage requests",
		Buckets:   prometheus.DefBuckets,
	})
	llmDegradedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "triage",
		Name:      "llm_degraded_total",
		Help:      "Triage requests that fell back to the degraded outcome, by reason",
	}, []string{"reason"})
)

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Format   string          `json:"format,omitempty"`
	Stream   bool            `json:"stream"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// llmReply is the strict JSON shape the model is asked to return. Unknown
// enum spellings and out-of-range numbers are expected and coerced.
type llmReply struct {
	EmergencyType   string   `json:"emergency_type"`
	SeverityLevel   string   `json:"severity_level"`
	SeverityScore   float64  `json:"severity_score"`
	Confidence      float64  `json:"confidence"`
	AssignedService string   `json:"assigned_service"`
	Priority        float64  `json:"priority"`
	Summary         string   `json:"summary"`
	RiskIndicators  []string `json:"risk_indicators"`
	Location        string   `json:"location"`
}

// OllamaClient talks to a local Ollama instance. All failures degrade to
// the over-dispatching sentinel outcome; Classify never returns an error.
type OllamaClient struct {
	host       string
	model      string
	timeout    time.Duration
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*ollamaChatResponse]
	prompts    *PromptLibrary
	thresholds common.SeverityThresholds
}

func NewOllamaClient(host, model string, timeout time.Duration, prompts *PromptLibrary, thresholds common.SeverityThresholds) *OllamaClient {
	logger := slog.Default().With("component", "ollama_http")
	breaker := gobreaker.NewCircuitBreaker[*ollamaChatResponse](gobreaker.Settings{
		Name:    "ollama-client",
		Timeout: 30 * time.Second,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return &OllamaClient{
		host:    strings.TrimRight(host, "/"),
		model:   model,
		timeout: timeout,
		httpClient: &http.Client{
			Transport: &loggingRoundTripper{base: http.DefaultTransport, logger: logger},
		},
		breaker:    breaker,
		prompts:    prompts,
		thresholds: thresholds,
	}
}

// Classify runs the transcript through the model under the configured
// deadline. A reply that is not a single JSON object is retried once; any
// other failure goes straight to the degraded outcome.
func (c *OllamaClient) Classify(ctx context.Context, transcript string) *common.TriageOutcome {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	prompt, err := c.prompts.RenderTriagePrompt(transcript)
	if err != nil {
		slog.Error("failed to render triage prompt", "error", err)
		llmDegradedTotal.WithLabelValues("prompt").Inc()
		return degradedOutcome(transcript)
	}

	start := time.Now()
	defer func() {
		llmRequestDuration.Observe(time.Since(start).Seconds())
	}()

	resp, err := c.chat(ctx, prompt)
	if err != nil {
		slog.Warn("ollama request failed", "error", err)
		llmDegradedTotal.WithLabelValues("transport").Inc()
		return degradedOutcome(transcript)
	}

	reply, err := parseStrictReply(resp.Message.Content)
	if err != nil {
		slog.Warn("ollama reply rejected, retrying once", "error", err)
		resp, retryErr := c.chat(ctx, prompt)
		if retryErr != nil {
			llmDegradedTotal.WithLabelValues("transport").Inc()
			return degradedOutcome(transcript)
		}
		reply, err = parseStrictReply(resp.Message.Content)
		if err != nil {
			slog.Warn("ollama reply rejected after retry", "error", err)
			llmDegradedTotal.WithLabelValues("parse").Inc()
			return degradedOutcome(transcript)
		}
	}

	return c.outcomeFromReply(transcript, reply)
}

func (c *OllamaClient) chat(ctx context.Context, prompt *PromptPair) (*ollamaChatResponse, error) {
	options := map[string]any{}
	prompt.Config.ApplyTo(options)

	model := c.model
	if model == "" {
		model = prompt.Config.Model
	}

	messages := make([]ollamaMessage, 0, 2)
	if prompt.System != "" {
		messages = append(messages, ollamaMessage{Role: "system", Content: prompt.System})
	}
	messages = append(messages, ollamaMessage{Role: "user", Content: prompt.User})

	body, err := json.Marshal(ollamaChatRequest{
		Model:    model,
		Messages: messages,
		Format:   "json",
		Stream:   false,
		Options:  options,
	})
	if err != nil {
		return nil, err
	}

	return c.breaker.Execute(func() (*ollamaChatResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/chat", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		httpResp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer httpResp.Body.Close()

		if httpResp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("ollama returned status %d", httpResp.StatusCode)
		}

		var out ollamaChatResponse
		if err := json.NewDecoder(httpResp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("decode ollama response: %w", err)
		}
		return &out, nil
	})
}

// parseStrictReply accepts exactly one JSON object and nothing else.
func parseStrictReply(content string) (*llmReply, error) {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, fmt.Errorf("reply is not a JSON object")
	}

	dec := json.NewDecoder(strings.NewReader(trimmed))
	var reply llmReply
	if err := dec.Decode(&reply); err != nil {
		return nil, fmt.Errorf("parse reply: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("reply contains trailing content")
	}
	return &reply, nil
}

func (c *OllamaClient) outcomeFromReply(transcript string, reply *llmReply) *common.TriageOutcome {
	outcome := &common.TriageOutcome{
		Transcript:    transcript,
		Kind:          common.KindOrDefault(reply.EmergencyType),
		Severity:      common.SeverityOrDefault(reply.SeverityLevel),
		SeverityScore: reply.SeverityScore,
		Service:       common.ServiceOrDefault(reply.AssignedService),
		Priority:      int(reply.Priority),
		Confidence:    reply.Confidence,
		RiskTags:      reply.RiskIndicators,
		Summary:       truncateSummary(strings.TrimSpace(reply.Summary)),
	}

	if loc := strings.TrimSpace(reply.Location); loc != "" && !strings.EqualFold(loc, "null") {
		outcome.Location = loc
	}

	// Models regularly emit a level without a score; backfill a
	// representative score so the bucket invariant holds.
	if outcome.SeverityScore == 0 && reply.SeverityLevel != "" {
		switch outcome.Severity {
		case common.SeverityLevel1:
			outcome.SeverityScore = 85
		case common.SeverityLevel2:
			outcome.SeverityScore = 70
		case common.SeverityLevel3:
			outcome.SeverityScore = 50
		default:
			outcome.SeverityScore = 20
		}
	}

	outcome.ClampInvariants(c.thresholds)
	return outcome
}

// degradedOutcome is the safe sentinel produced when the model backend
// fails: it deliberately over-dispatches so a backend outage can only err
// toward sending help.
func degradedOutcome(transcript string) *common.TriageOutcome {
	return &common.TriageOutcome{
		Transcript:    transcript,
		Kind:          common.KindMedical,
		Severity:      common.SeverityLevel2,
		SeverityScore: 60,
		Service:       common.ServiceAmbulance,
		Priority:      8,
		Confidence:    0.3,
		RiskTags:      []string{"system_error"},
		Summary:       "System error - escalating to manual review",
	}
}

// isDegraded reports whether an outcome is the backend-failure sentinel.
func isDegraded(o *common.TriageOutcome) bool {
	return len(o.RiskTags) == 1 && o.RiskTags[0] == "system_error"
}

type loggingRoundTripper struct {
	base   http.RoundTripper
	logger *slog.Logger
}

func (l *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	base := l.base
	if base == nil {
		base = http.DefaultTransport
	}

	start := time.Now()
	resp, err := base.RoundTrip(req)
	latency := time.Since(start)
	if err != nil {
		l.logger.Warn("llm http request failed",
			"method", req.Method,
			"host", req.URL.Host,
			"path", req.URL.Path,
			"latency", latency,
			"error", err,
		)
		return resp, err
	}

	l.logger.Debug("llm http request",
		"method", req.Method,
		"host", req.URL.Host,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"latency", latency,
	)
	return resp, err
}
