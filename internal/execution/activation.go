package execution

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vanyastaff/nebula-sub011/internal/action"
	"github.com/vanyastaff/nebula-sub011/internal/credential"
	"github.com/vanyastaff/nebula-sub011/internal/resilience"
	"github.com/vanyastaff/nebula-sub011/internal/resource"
	"github.com/vanyastaff/nebula-sub011/internal/types"
	"github.com/vanyastaff/nebula-sub011/internal/value"
	"github.com/vanyastaff/nebula-sub011/internal/workflow"
)

// activation drives one node from parameter resolution through the
// resilience-wrapped action call. Everything it acquires is released on
// every exit path.
type activation struct {
	ex     *Executor
	run    *run
	node   *workflow.Node
	execID types.ExecutionID
	env    *Env
}

func (a *activation) execute(ctx context.Context) (out outcome) {
	out.id = a.node.ID
	defer func() {
		if rec := recover(); rec != nil {
			out.err = a.wrap(types.NewErrorf(types.INTERNAL, "node panicked: %v", rec), out.attempts)
		}
	}()

	ctx, span := a.ex.tracer.Start(ctx, "node.activate", trace.WithAttributes(
		attribute.String("node.id", a.node.ID.String()),
		attribute.String("node.name", a.node.Name),
		attribute.String("execution.id", a.execID.String()),
	))
	defer span.End()

	act, err := a.ex.actions.ByID(a.node.ActionID)
	if err != nil {
		out.err = a.fail(span, err, out.attempts)
		return out
	}

	params, err := a.resolveParameters()
	if err != nil {
		out.err = a.fail(span, err, out.attempts)
		return out
	}

	tokens, err := a.acquireCredentials(ctx)
	if err != nil {
		out.err = a.fail(span, err, out.attempts)
		return out
	}

	guards, err := a.acquireResources(ctx)
	if err != nil {
		out.err = a.fail(span, err, out.attempts)
		return out
	}
	defer func() {
		release := context.WithoutCancel(ctx)
		for _, g := range guards {
			g.Release(release)
		}
	}()

	input := action.Input{
		ExecutionID: a.execID,
		NodeID:      a.node.ID,
		Parameters:  params,
		Credentials: tokens,
		Resources:   guards,
		Variables:   a.env.Variables,
	}

	policy, attempts := a.buildPolicy(ctx, act.Name())
	result, err := policy.Execute(ctx, func(ctx context.Context) (value.Value, error) {
		return act.Execute(ctx, input)
	})
	out.attempts = *attempts
	if err != nil {
		out.err = a.fail(span, err, out.attempts)
		return out
	}

	out.output = result
	out.outputBytes = encodedSize(result)
	span.SetAttributes(attribute.Int("node.output_bytes", out.outputBytes))
	span.SetStatus(codes.Ok, "")
	return out
}

// resolveParameters materializes every ParamValue into a concrete Value.
func (a *activation) resolveParameters() (map[types.Key]value.Value, error) {
	if len(a.node.Parameters) == 0 {
		return nil, nil
	}
	resolved := make(map[types.Key]value.Value, len(a.node.Parameters))
	for key, pv := range a.node.Parameters {
		v, err := a.resolveParam(pv)
		if err != nil {
			return nil, types.WrapError(types.CodeOf(err), fmt.Sprintf("resolving parameter %q", key), err)
		}
		resolved[key] = v
	}
	return resolved, nil
}

func (a *activation) resolveParam(pv workflow.ParamValue) (value.Value, error) {
	switch pv.Type {
	case workflow.ParamLiteral:
		return value.FromAny(pv.Value)
	case workflow.ParamExpression:
		result, err := a.ex.evaluator.Eval(pv.Expression, a.env)
		if err != nil {
			return value.Value{}, err
		}
		return value.FromAny(result)
	case workflow.ParamTemplate:
		rendered, err := a.ex.evaluator.Interpolate(pv.Template, a.env)
		if err != nil {
			return value.Value{}, err
		}
		return value.Text(rendered)
	case workflow.ParamReference:
		view, ok := a.env.Nodes[pv.NodeID.String()]
		if !ok {
			return value.Value{}, types.NewErrorf(types.VARIABLE_RESOLUTION_FAILED,
				"no recorded output for node %s", pv.NodeID)
		}
		resolved, err := ResolvePath(view.Output, pv.OutputPath)
		if err != nil {
			return value.Value{}, err
		}
		return value.FromAny(resolved)
	}
	return value.Value{}, types.NewErrorf(types.WORKFLOW_INVALID, "unknown parameter value type %q", pv.Type)
}

func (a *activation) acquireCredentials(ctx context.Context) (map[types.CredentialID]*credential.AccessToken, error) {
	if len(a.node.Credentials) == 0 {
		return nil, nil
	}
	if a.ex.credentials == nil {
		return nil, types.NewError(types.PRECONDITION_FAILED,
			"node declares credentials but no credential manager is configured")
	}
	tokens := make(map[types.CredentialID]*credential.AccessToken, len(a.node.Credentials))
	for _, id := range a.node.Credentials {
		token, err := a.ex.credentials.GetToken(ctx, id)
		if err != nil {
			return nil, err
		}
		tokens[id] = token
	}
	return tokens, nil
}

func (a *activation) acquireResources(ctx context.Context) (map[types.Key]*resource.Guard, error) {
	if len(a.node.Resources) == 0 {
		return nil, nil
	}
	if a.ex.resources == nil {
		return nil, types.NewError(types.PRECONDITION_FAILED,
			"node declares resources but no resource registry is configured")
	}
	guards := make(map[types.Key]*resource.Guard, len(a.node.Resources))
	for _, key := range a.node.Resources {
		guard, err := a.ex.resources.Acquire(ctx, key)
		if err != nil {
			release := context.WithoutCancel(ctx)
			for _, g := range guards {
				g.Release(release)
			}
			return nil, err
		}
		guards[key] = guard
	}
	return guards, nil
}

// buildPolicy derives the node's resilience policy: node retry and
// timeout settings first, then workflow defaults, then the per-service
// record registered for the action. Breakers and bulkheads come only
// from the service record and are shared across nodes invoking the same
// action. The returned counter tracks the attempt number observed
// through the retry hook.
func (a *activation) buildPolicy(ctx context.Context, service types.Key) (*resilience.Policy[value.Value], *int) {
	attempts := new(int)

	builder := resilience.NewPolicy[value.Value]()

	record, hasRecord := a.ex.policies[service]
	if hasRecord {
		if record.Bulkhead != nil {
			builder.WithBulkhead(a.ex.resilienceReg.Bulkhead(service, *record.Bulkhead))
		}
		if record.Breaker != nil {
			builder.WithBreaker(a.ex.resilienceReg.Breaker(service, *record.Breaker))
		}
	}

	retryCfg := a.node.RetryPolicy
	if retryCfg == nil {
		retryCfg = a.run.def.Config.DefaultRetry
	}
	if retryCfg == nil && hasRecord {
		retryCfg = record.Retry
	}
	if retryCfg != nil {
		cfg := *retryCfg
		cfg.OnRetry = func(attempt int, _ time.Duration, err error) {
			*attempts = attempt
			_ = a.ex.record(ctx, a.run, Entry{
				Type:    EntryNodeRetrying,
				NodeID:  a.node.ID,
				Attempt: attempt,
				Error:   err.Error(),
			})
		}
		builder.WithRetry(cfg)
	}

	timeout := a.node.Timeout
	if timeout == 0 {
		timeout = a.run.def.Config.DefaultTimeout
	}
	if timeout == 0 && hasRecord {
		timeout = record.Timeout
	}
	if timeout > 0 {
		builder.WithTimeout(timeout.Std())
	}
	return builder.Build(), attempts
}

// fail records the error on the span and wraps it with node context.
func (a *activation) fail(span trace.Span, err error, attempt int) error {
	wrapped := a.wrap(err, attempt)
	span.RecordError(wrapped)
	span.SetStatus(codes.Error, wrapped.Error())
	return wrapped
}

func (a *activation) wrap(err error, attempt int) error {
	var nerr *types.Error
	if e, ok := err.(*types.Error); ok {
		nerr = e
	} else {
		nerr = types.WrapError(types.NODE_FAILED, "node activation failed", err)
	}
	return nerr.WithContext(types.ErrorContext{
		Component:   "execution",
		Operation:   "activate",
		NodeID:      a.node.ID.String(),
		ExecutionID: a.execID.String(),
		Attempt:     attempt,
	})
}

func encodedSize(v value.Value) int {
	data, err := json.Marshal(v.ToAny())
	if err != nil {
		return 0
	}
	return len(data)
}
