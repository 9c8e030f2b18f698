package budget

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ALLiDoizCode/m2m-sub004/telemetry"
)

func TestCanSpendStrictInequality(t *testing.T) {
	b := New(Config{Cap: 100})
	require.True(t, b.CanSpend(0))

	b.RecordUsage(50, 50, 100)
	require.False(t, b.CanSpend(0), "zero remainder must not be able to spend even zero tokens")
}

func TestRecordUsageEmitsTokenUsageEveryCall(t *testing.T) {
	var emitted []telemetry.Type
	b := New(Config{Cap: 1000, Emit: func(tp telemetry.Type, fields map[string]interface{}) error {
		emitted = append(emitted, tp)
		return nil
	}})

	b.RecordUsage(10, 10, 20)
	require.Contains(t, emitted, telemetry.TypeAITokenUsage)
}

func TestBudgetWarningLatchesIndependently(t *testing.T) {
	var warnings []float64
	b := New(Config{Cap: 100, Emit: func(tp telemetry.Type, fields map[string]interface{}) error {
		if tp == telemetry.TypeAIBudgetWarning {
			warnings = append(warnings, fields["threshold"].(float64))
		}
		return nil
	}})

	b.RecordUsage(0, 0, 80) // crosses 80%
	require.Equal(t, []float64{0.80}, warnings)

	b.RecordUsage(0, 0, 1) // still above 80%, latch should suppress re-emit
	require.Equal(t, []float64{0.80}, warnings)

	b.RecordUsage(0, 0, 15) // crosses 95% (now at 96)
	require.Equal(t, []float64{0.80, 0.95}, warnings)
}

func TestBudgetExhaustedEmitted(t *testing.T) {
	var sawExhausted bool
	b := New(Config{Cap: 10, Emit: func(tp telemetry.Type, fields map[string]interface{}) error {
		if tp == telemetry.TypeAIBudgetExhausted {
			sawExhausted = true
		}
		return nil
	}})

	b.RecordUsage(0, 0, 10)
	require.True(t, sawExhausted)
}

func TestResetClearsRecordsAndLatches(t *testing.T) {
	b := New(Config{Cap: 100})
	b.RecordUsage(0, 0, 90)
	require.Equal(t, int64(90), b.Used())

	b.Reset()
	require.Equal(t, int64(0), b.Used())
	require.True(t, b.CanSpend(99))
}

func TestTelemetryErrorsAreSwallowed(t *testing.T) {
	b := New(Config{Cap: 100, Emit: func(tp telemetry.Type, fields map[string]interface{}) error {
		panic("telemetry sink exploded")
	}})

	require.NotPanics(t, func() {
		b.RecordUsage(1, 1, 2)
	})
	require.Equal(t, int64(2), b.Used())
}
