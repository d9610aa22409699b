package main

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/haresh-sai06/rapid100/pkg/common"
)

const (
	backendRule   = "rule"
	backendLLM    = "llm"
	backendHybrid = "hybrid"
)

var (
	triageCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "triage",
		Name:      "calls_total",
		Help:      "Triaged utterances by kind and severity",
	}, []string{"kind", "severity"})
	triageProcessingSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "triage",
		Name:      "processing_seconds",
		Help:      "End-to-end triage pipeline latency",
		Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 2, 3, 5},
	})
)

// locationPatterns opportunistically pull a street or area name out of the
// transcript. Extraction failure is silent; the field stays empty.
var locationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(?:at|on|near|in)\s+(\d*\s*[A-Z][a-z]+(?:\s+[A-Z][a-z]+)?\s+(?:Street|St|Avenue|Ave|Road|Rd|Drive|Dr|Lane|Ln|Boulevard|Blvd))\b`),
	regexp.MustCompile(`\b(\d+\s+[A-Z][a-z]+\s+(?:Street|St|Avenue|Ave|Road|Rd|Drive|Dr|Lane|Ln|Boulevard|Blvd))\b`),
	regexp.MustCompile(`\b([A-Z][a-z]+\s+(?:Street|Avenue|Road|Drive|Lane|Boulevard))\b`),
	regexp.MustCompile(`\b([A-Z][a-z]+\s+(?:Area|Nagar|Colony))\b`),
}

// Orchestrator composes a classification backend with the routing table
// and response synthesizer to produce complete triage outcomes.
type Orchestrator struct {
	backend       string
	llm           *OllamaClient
	thresholds    common.SeverityThresholds
	minConfidence float64
}

func NewOrchestrator(backend string, llm *OllamaClient, thresholds common.SeverityThresholds, minConfidence float64) *Orchestrator {
	if backend != backendRule && backend != backendLLM && backend != backendHybrid {
		slog.Warn("unknown triage backend, falling back to hybrid", "backend", backend)
		backend = backendHybrid
	}
	if backend != backendRule && llm == nil {
		slog.Warn("llm backend requested without an llm client, using rules only", "backend", backend)
		backend = backendRule
	}
	return &Orchestrator{
		backend:       backend,
		llm:           llm,
		thresholds:    thresholds,
		minConfidence: minConfidence,
	}
}

// Process runs one utterance through classify -> route -> synthesize and
// returns a complete outcome. It never fails: backend errors surface as the
// degraded sentinel, which still routes and synthesizes normally.
func (o *Orchestrator) Process(ctx context.Context, transcript string) (*common.TriageOutcome, responsePlan) {
	start := time.Now()

	outcome := o.classify(ctx, transcript)

	// The routing table is authoritative unless the backend is confident
	// in its own service assignment. The degraded sentinel is exempt: its
	// deliberate over-dispatch routing passes through untouched.
	if !isDegraded(outcome) {
		service, priority := route(outcome.Kind, outcome.Severity)
		if outcome.Confidence < o.minConfidence || outcome.Service == "" {
			outcome.Service = service
			outcome.Priority = priority
		} else if outcome.Priority < 1 || outcome.Priority > 10 {
			outcome.Priority = priority
		}
	}

	plan := synthesize(outcome.Kind, outcome.Severity)
	outcome.Spoken = plan.Spoken
	outcome.ImmediateActions = plan.ImmediateActions
	outcome.Precautions = plan.Precautions

	if outcome.Location == "" {
		outcome.Location = extractLocation(transcript)
	}
	if outcome.Summary == "" {
		outcome.Summary = buildSummary(outcome)
	} else {
		// Backend-supplied summaries get the same dispatcher-facing bound.
		outcome.Summary = truncateSummary(outcome.Summary)
	}

	outcome.ProcessingMs = float64(time.Since(start).Microseconds()) / 1000
	outcome.CreatedAt = time.Now().UTC()

	triageCallsTotal.WithLabelValues(string(outcome.Kind), string(outcome.Severity)).Inc()
	triageProcessingSeconds.Observe(time.Since(start).Seconds())

	return outcome, plan
}

func (o *Orchestrator) classify(ctx context.Context, transcript string) *common.TriageOutcome {
	switch o.backend {
	case backendRule:
		return classifyRule(transcript, o.thresholds)
	case backendLLM:
		return o.llm.Classify(ctx, transcript)
	default:
		// Hybrid: the rule result is always available instantly; the model
		// replaces it only when it answers in time with something usable
		// and at least as much confidence.
		ruleOutcome := classifyRule(transcript, o.thresholds)
		llmOutcome := o.llm.Classify(ctx, transcript)
		if isDegraded(llmOutcome) {
			return ruleOutcome
		}
		if llmOutcome.Confidence < ruleOutcome.Confidence {
			return ruleOutcome
		}
		// Keep the rule backend's matched phrases when the model returned
		// none; dispatchers rely on them.
		if len(llmOutcome.RiskTags) == 0 {
			llmOutcome.RiskTags = ruleOutcome.RiskTags
		}
		return llmOutcome
	}
}

func extractLocation(transcript string) string {
	for _, pattern := range locationPatterns {
		if m := pattern.FindStringSubmatch(transcript); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

const maxSummaryLen = 200

// buildSummary renders the dispatcher-facing one-liner:
// "{severity} {kind} - {top risk tags}; {location}; {action}".
func buildSummary(o *common.TriageOutcome) string {
	var b strings.Builder
	b.WriteString(o.Severity.Descriptor())
	b.WriteString(" ")
	b.WriteString(o.Kind.Display())

	if len(o.RiskTags) > 0 {
		top := o.RiskTags
		if len(top) > 3 {
			top = top[:3]
		}
		b.WriteString(" - ")
		b.WriteString(strings.Join(top, ", "))
	}
	if o.Location != "" {
		b.WriteString("; ")
		b.WriteString(o.Location)
	}
	b.WriteString("; ")
	b.WriteString(actionDirective(o.Severity))

	return truncateSummary(b.String())
}

// truncateSummary enforces the 200-character dispatcher-facing bound,
// cutting at a word boundary where possible.
func truncateSummary(summary string) string {
	if len(summary) <= maxSummaryLen {
		return summary
	}
	if cut := strings.LastIndex(summary[:maxSummaryLen-3], " "); cut > 0 {
		return summary[:cut] + "..."
	}
	return summary[:maxSummaryLen-3] + "..."
}

func actionDirective(s common.Severity) string {
	switch s {
	case common.SeverityLevel1:
		return "immediate dispatch required"
	case common.SeverityLevel2:
		return "urgent dispatch required"
	default:
		return "prompt dispatch required"
	}
}
