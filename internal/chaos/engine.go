// internal/chaos/engine.go

// Package chaos runs steady-state experiments against a live marketplace
// database: measure invariants, inject load or faults, keep measuring, and
// check the invariants still hold afterwards.
package chaos

import (
	"context"
	"errors"
	"sync"
	"time"

	"carmarket/internal/logging"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrSteadyStateInvalid aborts an experiment whose invariants fail before
// anything was injected.
var ErrSteadyStateInvalid = errors.New("steady state invalid, aborting experiment")

// Experiment is one hypothesis about the system under stress.
type Experiment struct {
	Name        string
	Hypothesis  string
	SteadyState []Metric
	Method      []Action
	Rollback    []Action
	Validation  []Assertion
	// Duration of the observation window after the method ran.
	Duration time.Duration
	// SampleEvery is the observation interval; defaults to one second.
	SampleEvery time.Duration
}

// Metric is a measurable property of the system.
type Metric struct {
	Name      string
	Query     func(context.Context) (float64, error)
	Threshold Threshold
}

// Threshold is the acceptable range of a metric.
type Threshold struct {
	Operator string // >, <, >=, <=, ==
	Value    float64
}

// Holds reports whether value is within the threshold.
func (t Threshold) Holds(value float64) bool {
	switch t.Operator {
	case ">":
		return value > t.Value
	case "<":
		return value < t.Value
	case ">=":
		return value >= t.Value
	case "<=":
		return value <= t.Value
	case "==":
		return value == t.Value
	default:
		return false
	}
}

// Action injects load or a fault, or undoes one.
type Action struct {
	Type    string
	Target  string
	Execute func(context.Context) error
}

// Assertion is checked against the last observation of a metric.
type Assertion struct {
	Metric    string
	Condition func(float64) bool
	Message   string
}

// Result captures one experiment run.
type Result struct {
	ExperimentName   string                 `json:"experiment_name"`
	StartTime        time.Time              `json:"start_time"`
	EndTime          time.Time              `json:"end_time"`
	Duration         time.Duration          `json:"duration"`
	HypothesisHeld   bool                   `json:"hypothesis_held"`
	SteadyStateValid bool                   `json:"steady_state_valid"`
	Violations       []MetricViolation      `json:"violations"`
	FailedAssertions []string               `json:"failed_assertions,omitempty"`
	Observations     map[string][]DataPoint `json:"observations"`
	ErrorEvents      []ErrorEvent           `json:"error_events"`
}

type MetricViolation struct {
	MetricName string    `json:"metric_name"`
	Expected   float64   `json:"expected"`
	Actual     float64   `json:"actual"`
	Timestamp  time.Time `json:"timestamp"`
}

type DataPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

type ErrorEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error"`
	Component string    `json:"component"`
}

// Engine registers and runs experiments.
type Engine struct {
	tracer      trace.Tracer
	log         logrus.FieldLogger
	mu          sync.Mutex
	experiments []Experiment
}

func NewEngine(logger logrus.FieldLogger) *Engine {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Engine{
		tracer: otel.Tracer("carmarket/chaos"),
		log:    logger,
	}
}

// Register adds an experiment to the suite.
func (e *Engine) Register(exp Experiment) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.experiments = append(e.experiments, exp)
}

// Experiments returns the registered experiments.
func (e *Engine) Experiments() []Experiment {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Experiment(nil), e.experiments...)
}

// Run executes one experiment: steady state, method, observation, rollback,
// validation.
func (e *Engine) Run(ctx context.Context, exp Experiment) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "chaos.run_experiment",
		trace.WithAttributes(attribute.String("experiment.name", exp.Name)),
	)
	defer span.End()

	log := e.log.WithField("experiment", exp.Name)
	result := &Result{
		ExperimentName: exp.Name,
		StartTime:      time.Now(),
		Observations:   make(map[string][]DataPoint),
	}

	span.AddEvent("validating_steady_state")
	if violations := e.sample(ctx, exp.SteadyState, result); len(violations) > 0 {
		result.Violations = violations
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(result.StartTime)
		return result, ErrSteadyStateInvalid
	}
	result.SteadyStateValid = true

	span.AddEvent("injecting_chaos")
	for _, action := range exp.Method {
		log.WithFields(logrus.Fields{"action": action.Type, "target": action.Target}).Info("executing action")
		if err := action.Execute(ctx); err != nil {
			result.recordError(action.Target, err)
			span.RecordError(err)
		}
	}

	span.AddEvent("observing_system")
	interval := exp.SampleEvery
	if interval <= 0 {
		interval = time.Second
	}
	if exp.Duration > 0 {
		observeCtx, cancel := context.WithTimeout(ctx, exp.Duration)
		ticker := time.NewTicker(interval)
	observe:
		for {
			select {
			case <-observeCtx.Done():
				break observe
			case <-ticker.C:
				result.Violations = append(result.Violations, e.sample(ctx, exp.SteadyState, result)...)
			}
		}
		ticker.Stop()
		cancel()
	}

	span.AddEvent("rolling_back")
	for _, action := range exp.Rollback {
		if err := action.Execute(ctx); err != nil {
			result.recordError(action.Target, err)
			span.RecordError(err)
		}
	}

	// One final sample after rollback is what the assertions judge.
	result.Violations = append(result.Violations, e.sample(ctx, exp.SteadyState, result)...)

	span.AddEvent("validating_assertions")
	result.FailedAssertions = validate(exp.Validation, result)
	result.HypothesisHeld = len(result.FailedAssertions) == 0
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	span.SetAttributes(
		attribute.Bool("hypothesis_held", result.HypothesisHeld),
		attribute.Int("violations", len(result.Violations)),
	)
	return result, nil
}

// RunAll runs every registered experiment, pausing between them.
func (e *Engine) RunAll(ctx context.Context, pause time.Duration) []*Result {
	experiments := e.Experiments()
	results := make([]*Result, 0, len(experiments))
	for i, exp := range experiments {
		log := e.log.WithFields(logrus.Fields{
			"experiment": exp.Name,
			"hypothesis": exp.Hypothesis,
			"index":      i + 1,
			"total":      len(experiments),
		})
		log.Info("starting experiment")

		result, err := e.Run(ctx, exp)
		if err != nil {
			log.WithError(err).Error("experiment aborted")
		}
		Report(log, result)
		results = append(results, result)

		if i < len(experiments)-1 && pause > 0 {
			select {
			case <-ctx.Done():
				return results
			case <-time.After(pause):
			}
		}
	}
	return results
}

// Report logs the outcome of one run.
func Report(log logrus.FieldLogger, result *Result) {
	if result == nil {
		return
	}
	for _, v := range result.Violations {
		log.WithFields(logrus.Fields{
			"metric":   v.MetricName,
			"expected": v.Expected,
			"actual":   v.Actual,
		}).Warn("invariant violated")
	}
	for _, msg := range result.FailedAssertions {
		log.WithField("assertion", msg).Warn("assertion failed")
	}
	entry := log.WithFields(logrus.Fields{
		"hypothesis_held": result.HypothesisHeld,
		"violations":      len(result.Violations),
		"errors":          len(result.ErrorEvents),
		"duration":        result.Duration.String(),
	})
	if result.HypothesisHeld {
		entry.Info("hypothesis held")
		return
	}
	entry.Error("hypothesis violated")
}

func (e *Engine) sample(ctx context.Context, metrics []Metric, result *Result) []MetricViolation {
	var violations []MetricViolation
	for _, metric := range metrics {
		now := time.Now()
		value, err := metric.Query(ctx)
		if err != nil {
			result.recordError(metric.Name, err)
			violations = append(violations, MetricViolation{
				MetricName: metric.Name,
				Expected:   metric.Threshold.Value,
				Actual:     -1,
				Timestamp:  now,
			})
			continue
		}
		result.Observations[metric.Name] = append(result.Observations[metric.Name], DataPoint{Timestamp: now, Value: value})
		if !metric.Threshold.Holds(value) {
			violations = append(violations, MetricViolation{
				MetricName: metric.Name,
				Expected:   metric.Threshold.Value,
				Actual:     value,
				Timestamp:  now,
			})
		}
	}
	return violations
}

func (r *Result) recordError(component string, err error) {
	r.ErrorEvents = append(r.ErrorEvents, ErrorEvent{
		Timestamp: time.Now(),
		Error:     err.Error(),
		Component: component,
	})
}

func validate(assertions []Assertion, result *Result) []string {
	var failed []string
	for _, a := range assertions {
		observations := result.Observations[a.Metric]
		if len(observations) == 0 {
			failed = append(failed, a.Message+" (no observations)")
			continue
		}
		if !a.Condition(observations[len(observations)-1].Value) {
			failed = append(failed, a.Message)
		}
	}
	return failed
}
