package chaos

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThresholdHolds(t *testing.T) {
	cases := []struct {
		op    string
		limit float64
		value float64
		want  bool
	}{
		{">", 1, 2, true},
		{">", 1, 1, false},
		{"<", 1, 0, true},
		{">=", 1, 1, true},
		{"<=", 1, 2, false},
		{"==", 0, 0, true},
		{"==", 0, 0.5, false},
		{"!=", 0, 1, false},
	}
	for _, tc := range cases {
		got := Threshold{Operator: tc.op, Value: tc.limit}.Holds(tc.value)
		assert.Equal(t, tc.want, got, "%v %s %v", tc.value, tc.op, tc.limit)
	}
}

func gauge(name string, v *atomic.Int64) Metric {
	return Metric{
		Name:      name,
		Query:     func(context.Context) (float64, error) { return float64(v.Load()), nil },
		Threshold: Threshold{Operator: "==", Value: 0},
	}
}

func zeroAssertion(name string) Assertion {
	return Assertion{Metric: name, Condition: func(v float64) bool { return v == 0 }, Message: name + " must be zero"}
}

func TestRunHoldsWhenRollbackRestoresSteadyState(t *testing.T) {
	var errorsSeen atomic.Int64
	var rolledBack bool
	exp := Experiment{
		Name:        "transient-errors",
		SteadyState: []Metric{gauge("errors", &errorsSeen)},
		Method: []Action{{Type: "inject", Target: "api", Execute: func(context.Context) error {
			errorsSeen.Store(3)
			return nil
		}}},
		Rollback: []Action{{Type: "heal", Target: "api", Execute: func(context.Context) error {
			rolledBack = true
			errorsSeen.Store(0)
			return nil
		}}},
		Validation:  []Assertion{zeroAssertion("errors")},
		Duration:    30 * time.Millisecond,
		SampleEvery: 5 * time.Millisecond,
	}

	result, err := NewEngine(nil).Run(context.Background(), exp)
	require.NoError(t, err)
	assert.True(t, rolledBack)
	assert.True(t, result.SteadyStateValid)
	assert.True(t, result.HypothesisHeld)
	assert.NotEmpty(t, result.Violations, "observation window saw the injected errors")
	assert.Empty(t, result.FailedAssertions)
}

func TestRunFailsWhenDamagePersists(t *testing.T) {
	var broken atomic.Int64
	exp := Experiment{
		Name:        "permanent-damage",
		SteadyState: []Metric{gauge("broken", &broken)},
		Method: []Action{{Type: "break", Target: "db", Execute: func(context.Context) error {
			broken.Store(1)
			return errors.New("partial failure")
		}}},
		Validation: []Assertion{zeroAssertion("broken")},
	}

	result, err := NewEngine(nil).Run(context.Background(), exp)
	require.NoError(t, err)
	assert.False(t, result.HypothesisHeld)
	assert.Equal(t, []string{"broken must be zero"}, result.FailedAssertions)
	require.Len(t, result.ErrorEvents, 1)
	assert.Equal(t, "db", result.ErrorEvents[0].Component)
}

func TestRunAbortsOnInvalidSteadyState(t *testing.T) {
	var bad atomic.Int64
	bad.Store(2)
	executed := false
	exp := Experiment{
		Name:        "already-broken",
		SteadyState: []Metric{gauge("bad", &bad)},
		Method: []Action{{Type: "inject", Target: "api", Execute: func(context.Context) error {
			executed = true
			return nil
		}}},
	}

	result, err := NewEngine(nil).Run(context.Background(), exp)
	require.ErrorIs(t, err, ErrSteadyStateInvalid)
	assert.False(t, executed)
	assert.False(t, result.SteadyStateValid)
	require.Len(t, result.Violations, 1)
	assert.Equal(t, float64(2), result.Violations[0].Actual)
}

func TestValidateWithoutObservations(t *testing.T) {
	failed := validate([]Assertion{zeroAssertion("missing")}, &Result{Observations: map[string][]DataPoint{}})
	assert.Equal(t, []string{"missing must be zero (no observations)"}, failed)
}

func TestRunAllRunsEveryExperiment(t *testing.T) {
	var zero atomic.Int64
	engine := NewEngine(nil)
	for _, name := range []string{"first", "second"} {
		engine.Register(Experiment{
			Name:        name,
			SteadyState: []Metric{gauge("g", &zero)},
			Validation:  []Assertion{zeroAssertion("g")},
		})
	}

	results := engine.RunAll(context.Background(), time.Millisecond)
	require.Len(t, results, 2)
	assert.Equal(t, "first", results[0].ExperimentName)
	assert.Equal(t, "second", results[1].ExperimentName)
	for _, r := range results {
		assert.True(t, r.HypothesisHeld)
	}
}
