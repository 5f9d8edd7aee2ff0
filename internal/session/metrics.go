package session

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the interview subsystem.
type Metrics struct {
	InterviewsStarted    prometheus.Counter
	TurnsTotal           prometheus.Counter
	ClassificationsTotal *prometheus.CounterVec
	DegradedTotal        prometheus.Counter
	ImagesAnalyzed       *prometheus.CounterVec
	LLMCallsTotal        *prometheus.CounterVec
	LLMTokensIn          prometheus.Counter
	LLMTokensOut         prometheus.Counter
	LLMDuration          prometheus.Histogram
}

// NewMetrics registers and returns interview metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		InterviewsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medtriage_interviews_started_total",
			Help: "Total interviews started.",
		}),
		TurnsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medtriage_interview_turns_total",
			Help: "Total interview turns advanced.",
		}),
		ClassificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medtriage_classifications_total",
			Help: "Total classifications by category and mode.",
		}, []string{"category", "mode"}),
		DegradedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medtriage_degraded_results_total",
			Help: "Total classifications that needed a fallback parse tier.",
		}),
		ImagesAnalyzed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medtriage_images_analyzed_total",
			Help: "Total images analyzed by severity.",
		}, []string{"severity"}),
		LLMCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medtriage_llm_calls_total",
			Help: "Total LLM provider calls by operation and status.",
		}, []string{"operation", "status"}),
		LLMTokensIn: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medtriage_llm_tokens_input_total",
			Help: "Total LLM input tokens consumed.",
		}),
		LLMTokensOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medtriage_llm_tokens_output_total",
			Help: "Total LLM output tokens consumed.",
		}),
		LLMDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "medtriage_llm_call_duration_seconds",
			Help:    "Duration of individual LLM calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s .. ~64s
		}),
	}

	reg.MustRegister(
		m.InterviewsStarted,
		m.TurnsTotal,
		m.ClassificationsTotal,
		m.DegradedTotal,
		m.ImagesAnalyzed,
		m.LLMCallsTotal,
		m.LLMTokensIn,
		m.LLMTokensOut,
		m.LLMDuration,
	)

	return m
}

// ProviderHook returns the per-call hook wired into the instrumented
// provider wrapper.
func (m *Metrics) ProviderHook() func(operation string, inputTokens, outputTokens int, seconds float64, err error) {
	return func(operation string, inputTokens, outputTokens int, seconds float64, err error) {
		status := "success"
		if err != nil {
			status = "error"
		}
		m.LLMCallsTotal.WithLabelValues(operation, status).Inc()
		m.LLMTokensIn.Add(float64(inputTokens))
		m.LLMTokensOut.Add(float64(outputTokens))
		m.LLMDuration.Observe(seconds)
	}
}
