package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuflow/docuflow/internal/pkg/flatten"
)

func evalString(t *testing.T, src string, ctx *flatten.Context) Value {
	t.Helper()
	e, err := Parse(src)
	require.NoError(t, err)
	return e.Eval(ctx)
}

func TestArithmetic(t *testing.T) {
	ctx := flatten.NewContext()
	ctx.Add("policy.amount", "100")
	ctx.Add("policy.rate", "0.5")

	tests := []struct {
		name string
		expr string
		want float64
	}{
		{"addition", "policy.amount + 10", 110},
		{"subtraction", "policy.amount - 30", 70},
		{"multiplication", "policy.amount * policy.rate", 50},
		{"division", "policy.amount / 4", 25},
		{"floor division", "policy.amount // 3", 33},
		{"modulo", "policy.amount % 30", 10},
		{"power", "2 ** 10", 1024},
		{"precedence", "2 + 3 * 4", 14},
		{"parentheses", "(2 + 3) * 4", 20},
		{"unary minus", "-policy.amount + 150", 50},
		{"right associative power", "2 ** 3 ** 2", 512},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := evalString(t, tt.expr, ctx)
			require.False(t, got.IsAbsent())
			f, ok := got.AsNumber()
			require.True(t, ok)
			assert.Equal(t, tt.want, f)
		})
	}
}

// An absent operand makes the whole arithmetic result absent, for every
// operator, and it propagates through nesting.
func TestAbsentPropagation(t *testing.T) {
	ctx := flatten.NewContext()
	ctx.Add("policy.amount", "100")

	tests := []string{
		"policy.amount + policy.missing",
		"policy.missing + policy.amount",
		"policy.amount - policy.missing",
		"policy.amount * policy.missing",
		"policy.amount / policy.missing",
		"policy.amount // policy.missing",
		"policy.amount % policy.missing",
		"policy.amount ** policy.missing",
		"(policy.amount + policy.missing) * 2",
		"1 + (2 * (3 - policy.missing))",
	}

	for _, src := range tests {
		t.Run(src, func(t *testing.T) {
			assert.True(t, evalString(t, src, ctx).IsAbsent(), "expected absent for %s", src)
		})
	}
}

func TestDivisionByZero(t *testing.T) {
	ctx := flatten.NewContext()
	ctx.Add("policy.amount", "100")
	ctx.Add("policy.zero", "0")

	assert.True(t, evalString(t, "policy.amount / policy.zero", ctx).IsAbsent())
	assert.True(t, evalString(t, "policy.amount // 0", ctx).IsAbsent())
	assert.True(t, evalString(t, "policy.amount % 0", ctx).IsAbsent())
}

func TestComparisons(t *testing.T) {
	ctx := flatten.NewContext()
	ctx.Add("policy.amount", "100")
	ctx.Add("policy.code", "abc")

	tests := []struct {
		expr string
		want bool
	}{
		{"policy.amount > 50", true},
		{"policy.amount >= 100", true},
		{"policy.amount < 100", false},
		{"policy.amount <= 99", false},
		{"policy.amount = 100", true},
		{"policy.amount != 100", false},
		// Numeric coercion first: "100" compares as a number, not a string.
		{"policy.amount > 20", true},
		// Lexicographic fallback for non-numeric operands.
		{"policy.code < 'abd'", true},
		{"policy.code = 'abc'", true},
		// Comparison against an absent operand is false.
		{"policy.missing > 0", false},
		{"policy.missing = policy.missing", false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got := evalString(t, tt.expr, ctx)
			assert.Equal(t, tt.want, got.Truthy())
		})
	}
}

func TestLogicalOperators(t *testing.T) {
	ctx := flatten.NewContext()
	ctx.Add("policy.amount", "100")

	assert.True(t, evalString(t, "policy.amount > 50 AND policy.amount < 200", ctx).Truthy())
	assert.False(t, evalString(t, "policy.amount > 50 AND policy.amount > 200", ctx).Truthy())
	assert.True(t, evalString(t, "policy.amount > 200 OR policy.amount = 100", ctx).Truthy())
	assert.False(t, evalString(t, "policy.amount > 200 OR policy.missing > 0", ctx).Truthy())
}

func TestCaseFirstMatchWins(t *testing.T) {
	ctx := flatten.NewContext()
	ctx.Add("x", "12")

	got := evalString(t, "CASE WHEN x > 10 THEN 'A' WHEN x > 5 THEN 'B' ELSE 'C' END", ctx)
	assert.Equal(t, "A", got.AsString())

	ctx2 := flatten.NewContext()
	ctx2.Add("x", "7")
	got = evalString(t, "CASE WHEN x > 10 THEN 'A' WHEN x > 5 THEN 'B' ELSE 'C' END", ctx2)
	assert.Equal(t, "B", got.AsString())

	ctx3 := flatten.NewContext()
	ctx3.Add("x", "1")
	got = evalString(t, "CASE WHEN x > 10 THEN 'A' WHEN x > 5 THEN 'B' ELSE 'C' END", ctx3)
	assert.Equal(t, "C", got.AsString())
}

func TestCaseNoMatchNoElseIsAbsent(t *testing.T) {
	ctx := flatten.NewContext()
	ctx.Add("x", "1")

	got := evalString(t, "CASE WHEN x > 10 THEN 'A' END", ctx)
	assert.True(t, got.IsAbsent())
}

func TestLike(t *testing.T) {
	ctx := flatten.NewContext()
	ctx.Add("policy.number", "PA-2024-00123")

	tests := []struct {
		expr string
		want bool
	}{
		{"policy.number LIKE 'PA-%'", true},
		{"policy.number LIKE 'pa-%'", true}, // case-insensitive
		{"policy.number LIKE '%00123'", true},
		{"policy.number LIKE 'PA-____-00123'", true},
		{"policy.number LIKE 'HO-%'", false},
		{"policy.missing LIKE '%'", false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			assert.Equal(t, tt.want, evalString(t, tt.expr, ctx).Truthy())
		})
	}
}

func TestNullVersusEmpty(t *testing.T) {
	ctx := flatten.NewContext()
	ctx.Add("policy.blank", "   ")
	ctx.Add("policy.filled", "x")

	tests := []struct {
		expr string
		want bool
	}{
		// NULL is strict: only unresolved is null, whitespace is not.
		{"policy.missing IS NULL", true},
		{"policy.blank IS NULL", false},
		{"policy.filled IS NULL", false},
		{"policy.blank IS NOT NULL", true},
		// EMPTY is whitespace-aware.
		{"policy.missing IS EMPTY", true},
		{"policy.blank IS EMPTY", true},
		{"policy.filled IS EMPTY", false},
		{"policy.filled IS NOT EMPTY", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			assert.Equal(t, tt.want, evalString(t, tt.expr, ctx).Truthy())
		})
	}
}

func TestDateParsingFirstFormatWins(t *testing.T) {
	ctx := flatten.NewContext()

	got := evalString(t, "DATE('2024-01-01')", ctx)
	ts, ok := got.AsTime()
	require.True(t, ok)
	assert.Equal(t, "2024-01-01", ts.Format("2006-01-02"))

	// US layout is declared before the dotted European one.
	got = evalString(t, "DATE('03/04/2024')", ctx)
	ts, ok = got.AsTime()
	require.True(t, ok)
	assert.Equal(t, "2024-03-04", ts.Format("2006-01-02"))

	assert.True(t, evalString(t, "DATE('not a date')", ctx).IsAbsent())
}

func TestDateAdd(t *testing.T) {
	ctx := flatten.NewContext()
	ctx.Add("policy.term", "30")

	got := evalString(t, "DATEADD(day, 30, DATE('2024-01-01'))", ctx)
	assert.Equal(t, "2024-01-31", got.AsString())

	got = evalString(t, "DATEADD(day, policy.term, DATE('2024-01-01'))", ctx)
	assert.Equal(t, "2024-01-31", got.AsString())

	// Absent amount adds zero days.
	got = evalString(t, "DATEADD(day, policy.missing, DATE('2024-01-01'))", ctx)
	assert.Equal(t, "2024-01-01", got.AsString())

	// Absent date is absent.
	assert.True(t, evalString(t, "DATEADD(day, 30, DATE(policy.missing))", ctx).IsAbsent())
}

func TestFieldRefCaseInsensitive(t *testing.T) {
	ctx := flatten.NewContext()
	ctx.Add("Policy.PolicyNumber", "PA-1")

	assert.Equal(t, "PA-1", evalString(t, "policy.policynumber", ctx).AsString())
	assert.Equal(t, "PA-1", evalString(t, "POLICY.POLICYNUMBER", ctx).AsString())
}

func TestEvaluatorIsPure(t *testing.T) {
	ctx := flatten.NewContext()
	ctx.Add("policy.amount", "10")

	e, err := Parse("policy.amount * 2")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		f, ok := e.Eval(ctx).AsNumber()
		require.True(t, ok)
		assert.Equal(t, 20.0, f)
	}
}
