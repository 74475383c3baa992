package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanyastaff/nebula-sub011/internal/types"
)

func testEnv() *Env {
	return &Env{
		Variables: map[string]any{
			"threshold": int64(5),
			"label":     "prod",
			"flag":      true,
		},
		Nodes: map[string]NodeView{
			"fetch": {
				Status: "completed",
				Output: map[string]any{
					"status": int64(200),
					"items":  []any{"a", "b", "c"},
					"meta":   map[string]any{"region": "eu"},
				},
			},
			"broken": {
				Status: "failed",
				Error:  "[TIMEOUT] deadline exceeded",
			},
		},
		Output: map[string]any{"score": 10.0},
	}
}

func TestEvaluatorComparisonsAndLogic(t *testing.T) {
	e := NewEvaluator()
	env := testEnv()

	cases := []struct {
		expr string
		want bool
	}{
		{`nodes.fetch.status == "completed"`, true},
		{`nodes.fetch.output.status == 200`, true},
		{`nodes.fetch.output.status >= 300`, false},
		{`len(nodes.fetch.output.items) > 2`, true},
		{`nodes.fetch.output.items[1] == "b"`, true},
		{`nodes.fetch.output.meta.region == "eu" && flag`, true},
		{`nodes.broken.status == "failed" || false`, true},
		{`!empty(nodes.fetch.output.items)`, true},
		{`exists(nodes.fetch.output.missing)`, false},
		{`variables.threshold < 10`, true},
		{`threshold < 10`, true},
		{`label >= "prod"`, true},
		{`output.score > 5`, true},
		{`(1 < 2) && (2 < 1) || true`, true},
		{`null == null`, true},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			got, err := e.EvalBool(tc.expr, env)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEvaluatorErrors(t *testing.T) {
	e := NewEvaluator()
	env := testEnv()

	_, err := e.Eval(`nodes.unknown.status == "x"`, env)
	require.Error(t, err)
	assert.Equal(t, types.VARIABLE_RESOLUTION_FAILED, types.CodeOf(err))

	_, err = e.Eval(`no_such_variable`, env)
	require.Error(t, err)
	assert.Equal(t, types.VARIABLE_RESOLUTION_FAILED, types.CodeOf(err))

	_, err = e.Eval(`1 +`, env)
	require.Error(t, err)
	assert.Equal(t, types.EXPRESSION_INVALID, types.CodeOf(err))

	_, err = e.Eval(`"unterminated`, env)
	require.Error(t, err)
	assert.Equal(t, types.EXPRESSION_INVALID, types.CodeOf(err))

	_, err = e.Eval(`len()`, env)
	require.Error(t, err)
	assert.Equal(t, types.EXPRESSION_INVALID, types.CodeOf(err))
}

func TestEvaluatorTruthiness(t *testing.T) {
	e := NewEvaluator()
	env := testEnv()

	got, err := e.EvalBool(`nodes.fetch.output.items`, env)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = e.EvalBool(`""`, env)
	require.NoError(t, err)
	assert.False(t, got)

	got, err = e.EvalBool(`0`, env)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestInterpolate(t *testing.T) {
	e := NewEvaluator()
	env := testEnv()

	out, err := e.Interpolate(`region={{ nodes.fetch.output.meta.region }} n={{ len(nodes.fetch.output.items) }}`, env)
	require.NoError(t, err)
	assert.Equal(t, "region=eu n=3", out)

	out, err = e.Interpolate("no placeholders", env)
	require.NoError(t, err)
	assert.Equal(t, "no placeholders", out)

	_, err = e.Interpolate("{{ oops", env)
	require.Error(t, err)
	assert.Equal(t, types.EXPRESSION_INVALID, types.CodeOf(err))
}

func TestResolvePath(t *testing.T) {
	root := map[string]any{
		"body": map[string]any{
			"items": []any{
				map[string]any{"id": "first"},
				map[string]any{"id": "second"},
			},
		},
	}

	got, err := ResolvePath(root, "body.items[1].id")
	require.NoError(t, err)
	assert.Equal(t, "second", got)

	got, err = ResolvePath(root, "")
	require.NoError(t, err)
	assert.Equal(t, root, got)

	_, err = ResolvePath(root, "body.missing")
	require.Error(t, err)
	assert.Equal(t, types.VARIABLE_RESOLUTION_FAILED, types.CodeOf(err))

	_, err = ResolvePath(root, "body.items[9]")
	require.Error(t, err)
	assert.Equal(t, types.VARIABLE_RESOLUTION_FAILED, types.CodeOf(err))

	_, err = ResolvePath(root, "body.items[x]")
	require.Error(t, err)
	assert.Equal(t, types.VARIABLE_RESOLUTION_FAILED, types.CodeOf(err))
}
