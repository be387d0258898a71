package rules

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate_DocumentedCases(t *testing.T) {
	tests := []struct {
		name string
		rule string
		ctx  Context
		want bool
	}{
		{"simple comparison", "pct_equity >= 0.75", Context{"pct_equity": 0.8}, true},
		{"and chain", "pct_equity > 0.5 and pct_bonds < 0.5", Context{"pct_equity": 0.8, "pct_bonds": 0.2}, true},
		{"between inside", "pct_equity between 0.50 and 0.95", Context{"pct_equity": 0.8}, true},
		{"between outside", "pct_equity between 0.85 and 0.90", Context{"pct_equity": 0.8}, false},
		{"membership", "rebalance_frequency in [monthly, quarterly]", Context{"rebalance_frequency": "monthly"}, true},
		{"abs", "abs(tilt_value) >= 0.35", Context{"tilt_value": -0.5}, true},
		{"missing field", "nonexistent_field > 5", Context{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.rule, tt.ctx))
		})
	}
}

func TestEvaluate_Semantics(t *testing.T) {
	ctx := Context{
		"pct_equity":           0.8,
		"pct_bonds":            0.2,
		"pct_cash":             0.0,
		"n_positions":          12,
		"tier":                 2,
		"rebalance_frequency":  "annual",
		"uses_leveraged_etfs":  false,
		"uses_options_overlay": true,
	}
	tests := []struct {
		rule string
		want bool
	}{
		// inclusive range bounds
		{"pct_equity between 0.8 and 0.9", true},
		{"pct_equity between 0.7 and 0.8", true},
		{"pct_equity BETWEEN 0.1 AND 0.2", false},
		// keywords are case-insensitive
		{"pct_equity > 0.5 AND pct_bonds < 0.5", true},
		{"pct_equity > 0.9 Or pct_bonds < 0.5", true},
		// strict left-to-right folding: (true or true) and false
		{"pct_equity > 0.5 or pct_bonds > 0.1 and pct_cash > 0.5", false},
		// with and-binds-tighter this would be true; left to right it is false
		{"pct_equity > 0.5 or pct_bonds > 0.9 and pct_cash > 0.5", false},
		// (false and x) or true
		{"pct_equity > 0.9 and pct_bonds > 0.1 or pct_cash == 0", true},
		// explicit grouping
		{"pct_equity > 0.5 or (pct_bonds > 0.9 and pct_cash > 0.5)", true},
		// membership items are strings, numeric fields never match
		{"tier in [1, 2, 3]", false},
		{"rebalance_frequency in [monthly]", false},
		{"rebalance_frequency in [annual, 'threshold']", true},
		{"missing in [a, b]", false},
		// booleans
		{"uses_leveraged_etfs == true", false},
		{"uses_options_overlay == true", true},
		{"uses_options_overlay", true},
		{"uses_leveraged_etfs != true", true},
		// strings
		{"rebalance_frequency == 'annual'", true},
		{`rebalance_frequency == "monthly"`, false},
		// field to field
		{"pct_equity > pct_bonds", true},
		{"abs(pct_bonds) < pct_equity", true},
		// integer context values
		{"n_positions >= 10", true},
		// negative literals
		{"pct_cash > -0.5", true},
		{"pct_cash between -1 and 1", true},
		// undefined never compares true, not even with !=
		{"missing != 5", false},
		{"abs(missing) >= 0", false},
		{"missing", false},
		// mixed kinds do not coerce
		{"rebalance_frequency > 1", false},
		{"uses_options_overlay == 1", false},
	}
	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.rule, ctx))
		})
	}
}

func TestEvaluate_Arithmetic(t *testing.T) {
	ctx := Context{"pct_cash": 0.3, "pct_bonds": 0.45, "pct_crypto": 0.05, "label": "x"}
	tests := []struct {
		rule string
		want bool
	}{
		{"pct_cash + pct_bonds >= 0.70", true},
		{"pct_cash + pct_bonds + pct_crypto between 0.75 and 0.85", true},
		{"pct_bonds - pct_cash > 0.1", true},
		{"pct_bonds-pct_cash > 0.1", true},
		{"pct_cash * 2 > pct_bonds", true},
		{"pct_bonds / pct_cash > 1.4", true},
		{"1 + 2 * 3 == 7", true},
		{"-pct_cash < 0", true},
		{"abs(pct_cash - pct_bonds) >= 0.14", true},
		{"pct_cash + missing > 0", false},
		{"label + 1 > 0", false},
	}
	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.rule, ctx))
		})
	}
}

func TestEvaluate_ExactEquality(t *testing.T) {
	assert.True(t, Evaluate("x == 0.3", Context{"x": 0.3}))
	a, b := 0.1, 0.2
	assert.False(t, Evaluate("x == 0.3", Context{"x": a + b}))
}

func TestParse_Errors(t *testing.T) {
	bad := []string{
		"",
		"   ",
		"pct_equity >",
		"pct_equity > > 1",
		"pct_equity = 1",
		"pct_equity between 1",
		"pct_equity between 1 or 2",
		"x in [a, b",
		"x in a, b]",
		"(x > 1",
		"abs x > 1",
		"and > 1",
		"x > 1 y",
		"x > 'open",
		"x ~ 1",
	}
	for _, rule := range bad {
		t.Run(rule, func(t *testing.T) {
			_, err := Parse(rule)
			assert.Error(t, err)
		})
	}

	_, err := Parse("")
	assert.True(t, errors.Is(err, ErrEmptyRule))
}

func TestParse_Tree(t *testing.T) {
	node, err := Parse("a > 1 or b < 2 and c between 0 and 1")
	require.NoError(t, err)
	assert.Equal(t, "(((a > 1) or (b < 2)) and (c between 0 and 1))", node.String())

	node, err = Parse("x in [a, 'b c', 3]")
	require.NoError(t, err)
	m, ok := node.(*Membership)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b c", "3"}, m.Items)
}

func TestParse_ListItemsAreRawText(t *testing.T) {
	tests := []struct {
		rule string
		want []string
	}{
		{"x in [ad-hoc, buy & hold]", []string{"ad-hoc", "buy & hold"}},
		{"x in [a b,  c ]", []string{"a b", "c"}},
		{"x in ['a, b', \"c\"]", []string{"a, b", "c"}},
		{"x in [-1.5, 2e3]", []string{"-1.5", "2e3"}},
		{"x in []", nil},
	}
	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			node, err := Parse(tt.rule)
			require.NoError(t, err)
			m, ok := node.(*Membership)
			require.True(t, ok)
			assert.Equal(t, tt.want, m.Items)
		})
	}

	assert.True(t, Evaluate("style in [ad-hoc, monthly]", Context{"style": "ad-hoc"}))

	for _, rule := range []string{"x in [a,, b]", "x in [a, ]", "x in ['a, b]"} {
		_, err := Parse(rule)
		assert.Error(t, err, rule)
	}
}

func TestCompiler_BrokenRuleIsNeverAndReported(t *testing.T) {
	var failures []string
	c := NewCompiler(WithFailureHook(func(rule string, err error) {
		require.Error(t, err)
		failures = append(failures, rule)
	}))

	pred := c.Compile("pct_equity >>= 1")
	assert.False(t, pred(Context{"pct_equity": 5.0}))
	// cached: the hook is not called again
	c.Compile("pct_equity >>= 1")
	assert.Equal(t, []string{"pct_equity >>= 1"}, failures)
}

func TestCompiler_Caches(t *testing.T) {
	c := NewCompiler()
	c.Compile("a > 1")
	c.Compile("a > 1")
	c.Compile("b > 1")
	assert.Equal(t, 2, c.Len())
	assert.True(t, c.Evaluate("a > 1", Context{"a": 2}))
}

func TestCompiler_ConcurrentUse(t *testing.T) {
	c := NewCompiler()
	done := make(chan bool)
	for i := 0; i < 8; i++ {
		go func() {
			for j := 0; j < 200; j++ {
				c.Evaluate("pct_equity between 0.5 and 0.9", Context{"pct_equity": 0.6})
			}
			done <- true
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	assert.Equal(t, 1, c.Len())
}

func TestEvaluate_NilContext(t *testing.T) {
	assert.False(t, Evaluate("x > 1", nil))
}

func TestEvaluateOnce(t *testing.T) {
	got, err := EvaluateOnce("x between 1 and 3", Context{"x": 2})
	require.NoError(t, err)
	assert.True(t, got)

	got, err = EvaluateOnce("x > 1 >", Context{"x": 2})
	assert.Error(t, err)
	assert.False(t, got)

	before := defaultCompiler.Len()
	for _, rule := range []string{"once_a > 1", "once_b > 2", "once_c >"} {
		_, _ = EvaluateOnce(rule, nil)
	}
	assert.Equal(t, before, defaultCompiler.Len())
}
