package execution

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vanyastaff/nebula-sub011/internal/action"
	"github.com/vanyastaff/nebula-sub011/internal/credential"
	"github.com/vanyastaff/nebula-sub011/internal/events"
	"github.com/vanyastaff/nebula-sub011/internal/resilience"
	"github.com/vanyastaff/nebula-sub011/internal/resource"
	"github.com/vanyastaff/nebula-sub011/internal/types"
	"github.com/vanyastaff/nebula-sub011/internal/value"
	"github.com/vanyastaff/nebula-sub011/internal/workflow"
)

// DefaultMaxParallel bounds concurrent activations when neither the
// workflow config nor an option says otherwise.
const DefaultMaxParallel = 4

// Executor runs workflow definitions. It is safe for concurrent Run
// calls; all per-run state lives in the run struct.
type Executor struct {
	actions     *action.Registry
	credentials *credential.Manager
	resources   *resource.Registry
	bus         *events.Bus
	journal     Sink
	evaluator   Evaluator
	logger      *slog.Logger
	tracer      trace.Tracer
	maxParallel int
	now         func() time.Time

	// policies holds per-service resilience records keyed by action name;
	// shared breakers and bulkheads live in resilienceReg.
	policies      map[types.Key]resilience.PolicyConfig
	resilienceReg *resilience.Registry
}

// Option configures an Executor.
type Option func(*Executor)

// WithCredentials attaches a credential manager for nodes that declare
// credentials.
func WithCredentials(m *credential.Manager) Option {
	return func(x *Executor) { x.credentials = m }
}

// WithResources attaches a resource pool registry for nodes that declare
// resources.
func WithResources(r *resource.Registry) Option {
	return func(x *Executor) { x.resources = r }
}

// WithBus mirrors journal entries onto the event bus.
func WithBus(b *events.Bus) Option {
	return func(x *Executor) { x.bus = b }
}

// WithJournal replaces the default in-memory journal sink.
func WithJournal(s Sink) Option {
	return func(x *Executor) { x.journal = s }
}

// WithEvaluator replaces the default expression evaluator.
func WithEvaluator(e Evaluator) Option {
	return func(x *Executor) { x.evaluator = e }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(x *Executor) { x.logger = logger }
}

// WithMaxParallel sets the fallback concurrency budget for workflows
// whose config leaves max_parallel_nodes at zero.
func WithMaxParallel(n int) Option {
	return func(x *Executor) { x.maxParallel = n }
}

// WithPolicies attaches per-service resilience records, keyed by action
// name. Breakers and bulkheads built from a record are shared by every
// node invoking that action; node-level retry and timeout settings still
// win over the record's.
func WithPolicies(policies map[types.Key]resilience.PolicyConfig) Option {
	return func(x *Executor) { x.policies = policies }
}

// NewExecutor builds an executor over the given action registry.
func NewExecutor(actions *action.Registry, opts ...Option) *Executor {
	x := &Executor{
		actions:     actions,
		journal:     NewMemorySink(),
		evaluator:   NewEvaluator(),
		logger:      slog.Default(),
		tracer:      otel.Tracer("nebula/execution"),
		maxParallel: DefaultMaxParallel,
		now:         time.Now,

		resilienceReg: resilience.NewRegistry(),
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Journal returns the executor's journal sink.
func (x *Executor) Journal() Sink { return x.journal }

// NodeResult is the terminal record of one node.
type NodeResult struct {
	Status      NodeStatus
	Output      value.Value
	OutputBytes int
	Err         error
	Attempts    int
	Reason      string
}

// Result is the outcome of a run.
type Result struct {
	ExecutionID types.ExecutionID
	Status      ExecutionStatus
	Nodes       map[types.NodeID]*NodeResult
}

type outcome struct {
	id          types.NodeID
	output      value.Value
	outputBytes int
	attempts    int
	err         error
}

// run holds the mutable state of one execution. Only the scheduler
// goroutine touches it; activations communicate through the outcome
// channel.
type run struct {
	def      *workflow.Definition
	execID   types.ExecutionID
	preds    map[types.NodeID][]workflow.Connection
	succs    map[types.NodeID][]workflow.Connection
	status   map[types.NodeID]NodeStatus
	results  map[types.NodeID]*NodeResult
	// satisfied counts inbound edges whose condition held; terminal
	// counts predecessors that reached a terminal state.
	satisfied map[types.NodeID]int
	terminal  map[types.NodeID]int
	ready     []types.NodeID
	inFlight  int
	outcomes  chan outcome
	envNodes  map[string]NodeView
	cancelled bool
	aborted   bool
}

// Run executes the definition to completion, cancellation or abort. The
// returned Result always carries a terminal status for every node; the
// error reports infrastructure failures (invalid definition, journal
// write failures), not node failures.
func (x *Executor) Run(ctx context.Context, def *workflow.Definition) (*Result, error) {
	if err := workflow.NewValidator().Validate(def); err != nil {
		return nil, err
	}

	r := &run{
		def:       def,
		execID:    types.NewExecutionID(),
		preds:     def.Predecessors(),
		succs:     def.Successors(),
		status:    make(map[types.NodeID]NodeStatus, len(def.Nodes)),
		results:   make(map[types.NodeID]*NodeResult, len(def.Nodes)),
		satisfied: make(map[types.NodeID]int),
		terminal:  make(map[types.NodeID]int),
		outcomes:  make(chan outcome, len(def.Nodes)),
		envNodes:  make(map[string]NodeView, len(def.Nodes)),
	}
	for _, node := range def.Nodes {
		r.status[node.ID] = NodePending
	}

	ctx, span := x.tracer.Start(ctx, "workflow.run", trace.WithAttributes(
		attribute.String("workflow.id", def.ID.String()),
		attribute.String("workflow.name", def.Name),
		attribute.String("execution.id", r.execID.String()),
	))
	defer span.End()

	if err := x.record(ctx, r, Entry{Type: EntryExecutionStarted, WorkflowID: def.ID}); err != nil {
		return nil, err
	}

	roots := def.Roots()
	sortNodeIDs(roots)
	for _, id := range roots {
		x.schedule(ctx, r, id)
	}

	maxParallel := def.Config.MaxParallelNodes
	if maxParallel <= 0 {
		maxParallel = x.maxParallel
	}

	ctxDone := ctx.Done()
	for len(r.ready) > 0 || r.inFlight > 0 {
		for !r.cancelled && !r.aborted && r.inFlight < maxParallel && len(r.ready) > 0 {
			id := r.ready[0]
			r.ready = r.ready[1:]
			x.dispatch(ctx, r, id)
		}
		if r.inFlight == 0 {
			break
		}

		select {
		case out := <-r.outcomes:
			x.handleOutcome(ctx, r, out)
		case <-ctxDone:
			ctxDone = nil
			r.cancelled = true
			_ = x.record(ctx, r, Entry{Type: EntryCancellationRequested, Reason: ctx.Err().Error()})
			x.logger.Info("execution cancellation requested",
				"execution_id", r.execID, "workflow_id", def.ID)
		}
	}

	x.skipRemaining(ctx, r)

	result := &Result{ExecutionID: r.execID, Nodes: r.results, Status: x.aggregate(r)}
	switch result.Status {
	case ExecutionFailed:
		_ = x.record(ctx, r, Entry{
			Type:   EntryExecutionFailed,
			Status: result.Status.String(),
			Error:  firstFailure(r),
		})
		span.SetStatus(codes.Error, firstFailure(r))
	default:
		_ = x.record(ctx, r, Entry{Type: EntryExecutionCompleted, Status: result.Status.String()})
		span.SetStatus(codes.Ok, "")
	}
	x.logger.Info("execution finished",
		"execution_id", r.execID, "workflow_id", def.ID, "status", result.Status)
	return result, nil
}

// record appends to the journal and mirrors the entry onto the bus.
func (x *Executor) record(ctx context.Context, r *run, entry Entry) error {
	entry.ExecutionID = r.execID
	if entry.Timestamp.IsZero() {
		entry.Timestamp = x.now().UTC()
	}
	if err := x.journal.Append(ctx, entry); err != nil {
		return err
	}
	if x.bus != nil {
		_ = x.bus.Emit(entry.Event())
	}
	return nil
}

// schedule moves a pending node into the ready queue.
func (x *Executor) schedule(ctx context.Context, r *run, id types.NodeID) {
	if r.status[id] != NodePending {
		return
	}
	r.status[id] = NodeScheduled
	_ = x.record(ctx, r, Entry{Type: EntryNodeScheduled, NodeID: id})
	r.ready = append(r.ready, id)
}

// dispatch spawns the activation goroutine for a scheduled node.
func (x *Executor) dispatch(ctx context.Context, r *run, id types.NodeID) {
	node, _ := r.def.NodeByID(id)
	r.status[id] = NodeRunning
	_ = x.record(ctx, r, Entry{Type: EntryNodeStarted, NodeID: id, Attempt: 0})

	// Snapshot what the activation may read: the scheduler keeps
	// mutating envNodes while the goroutine runs.
	env := &Env{
		Variables: r.def.Variables,
		Nodes:     make(map[string]NodeView, len(r.envNodes)),
	}
	for k, v := range r.envNodes {
		env.Nodes[k] = v
	}

	act := &activation{
		ex:     x,
		run:    r,
		node:   node,
		execID: r.execID,
		env:    env,
	}
	r.inFlight++
	go func() {
		out := act.execute(ctx)
		r.outcomes <- out
	}()
}

// handleOutcome transitions a finished node and propagates along its
// outgoing edges.
func (x *Executor) handleOutcome(ctx context.Context, r *run, out outcome) {
	r.inFlight--
	node, _ := r.def.NodeByID(out.id)

	res := &NodeResult{
		Output:      out.output,
		OutputBytes: out.outputBytes,
		Err:         out.err,
		Attempts:    out.attempts,
	}
	r.results[out.id] = res

	switch {
	case out.err == nil:
		res.Status = NodeCompleted
		r.status[out.id] = NodeCompleted
		_ = x.record(ctx, r, Entry{
			Type:        EntryNodeCompleted,
			NodeID:      out.id,
			Attempt:     out.attempts,
			OutputBytes: out.outputBytes,
		})
	case r.cancelled && (types.CodeOf(out.err) == types.CANCELLED ||
		errors.Is(out.err, context.Canceled) || errors.Is(out.err, context.DeadlineExceeded)):
		res.Status = NodeCancelled
		r.status[out.id] = NodeCancelled
		_ = x.record(ctx, r, Entry{
			Type:    EntryNodeFailed,
			NodeID:  out.id,
			Attempt: out.attempts,
			Status:  NodeCancelled.String(),
			Error:   out.err.Error(),
		})
	default:
		res.Status = NodeFailed
		r.status[out.id] = NodeFailed
		_ = x.record(ctx, r, Entry{
			Type:    EntryNodeFailed,
			NodeID:  out.id,
			Attempt: out.attempts,
			Error:   out.err.Error(),
		})
		x.logger.Warn("node failed",
			"execution_id", r.execID, "node_id", out.id, "error", out.err)
		if !r.def.Config.ContinueOnError && !x.hasErrorEdges(r, out.id) {
			r.aborted = true
		}
	}

	view := NodeView{Status: r.status[out.id].String()}
	if out.err != nil {
		view.Error = out.err.Error()
	} else {
		view.Output = out.output.ToAny()
	}
	r.envNodes[out.id.String()] = view
	if node != nil {
		r.envNodes[node.Name] = view
	}

	x.propagate(ctx, r, out.id)
}

func (x *Executor) hasErrorEdges(r *run, id types.NodeID) bool {
	for _, conn := range r.succs[id] {
		if conn.Condition.Normalized().Type == workflow.ConditionOnError {
			return true
		}
	}
	return false
}

// propagate marks the node terminal for its successors, evaluating each
// outgoing edge condition, and readies or skips successors whose
// predecessors are all terminal.
func (x *Executor) propagate(ctx context.Context, r *run, id types.NodeID) {
	var newlyReady, newlySkipped []types.NodeID
	for _, conn := range r.succs[id] {
		r.terminal[conn.To]++
		if x.edgeSatisfied(r, conn, id) {
			r.satisfied[conn.To]++
		}
		if r.terminal[conn.To] < len(r.preds[conn.To]) {
			continue
		}
		if r.status[conn.To] != NodePending {
			continue
		}
		if r.satisfied[conn.To] > 0 {
			newlyReady = append(newlyReady, conn.To)
		} else {
			newlySkipped = append(newlySkipped, conn.To)
		}
	}

	sortNodeIDs(newlyReady)
	for _, next := range newlyReady {
		x.schedule(ctx, r, next)
	}
	sortNodeIDs(newlySkipped)
	for _, next := range newlySkipped {
		x.skip(ctx, r, next, "no satisfied inbound edge")
	}
}

// edgeSatisfied evaluates one outgoing connection against the source
// node's terminal state. Edges out of skipped or cancelled nodes are
// never satisfied, so skips cascade.
func (x *Executor) edgeSatisfied(r *run, conn workflow.Connection, from types.NodeID) bool {
	res := r.results[from]
	status := r.status[from]
	cond := conn.Condition.Normalized()

	switch status {
	case NodeCompleted:
		switch cond.Type {
		case workflow.ConditionAlways:
			return true
		case workflow.ConditionExpression:
			return x.evalEdge(r, cond.Expression, res)
		case workflow.ConditionOnResult:
			if cond.Matcher == "" {
				return true
			}
			return x.evalEdge(r, cond.Matcher, res)
		}
	case NodeFailed:
		switch cond.Type {
		case workflow.ConditionAlways:
			return true
		case workflow.ConditionOnError:
			if cond.Matcher == "" {
				return true
			}
			return cond.Matcher == string(types.CodeOf(res.Err))
		}
	}
	return false
}

func (x *Executor) evalEdge(r *run, expr string, res *NodeResult) bool {
	env := &Env{
		Variables: r.def.Variables,
		Nodes:     r.envNodes,
		Output:    res.Output.ToAny(),
	}
	ok, err := x.evaluator.EvalBool(expr, env)
	if err != nil {
		x.logger.Warn("edge condition evaluation failed",
			"execution_id", r.execID, "expression", expr, "error", err)
		return false
	}
	return ok
}

// skip marks a node skipped and cascades through its successors.
func (x *Executor) skip(ctx context.Context, r *run, id types.NodeID, reason string) {
	r.status[id] = NodeSkipped
	r.results[id] = &NodeResult{Status: NodeSkipped, Reason: reason}
	_ = x.record(ctx, r, Entry{Type: EntryNodeSkipped, NodeID: id, Reason: reason})
	x.propagate(ctx, r, id)
}

// skipRemaining resolves every node the loop never reached, after
// cancellation or an abort.
func (x *Executor) skipRemaining(ctx context.Context, r *run) {
	reason := "execution aborted"
	if r.cancelled {
		reason = "cancelled"
	}
	var rest []types.NodeID
	for _, node := range r.def.Nodes {
		if !r.status[node.ID].IsTerminal() {
			rest = append(rest, node.ID)
		}
	}
	sortNodeIDs(rest)
	for _, id := range rest {
		if r.status[id].IsTerminal() {
			continue // an earlier skip may have cascaded here
		}
		r.status[id] = NodeSkipped
		r.results[id] = &NodeResult{Status: NodeSkipped, Reason: reason}
		_ = x.record(ctx, r, Entry{Type: EntryNodeSkipped, NodeID: id, Reason: reason})
	}
}

// aggregate computes the run status: Failed beats Cancelled beats
// Completed, and skipped nodes do not count against completion.
func (x *Executor) aggregate(r *run) ExecutionStatus {
	anyFailed := false
	anyCancelled := r.cancelled
	for _, node := range r.def.Nodes {
		switch r.status[node.ID] {
		case NodeFailed:
			anyFailed = true
		case NodeCancelled:
			anyCancelled = true
		}
	}
	switch {
	case anyFailed:
		return ExecutionFailed
	case anyCancelled:
		return ExecutionCancelled
	default:
		return ExecutionCompleted
	}
}

func firstFailure(r *run) string {
	for _, node := range r.def.Nodes {
		if res := r.results[node.ID]; res != nil && res.Status == NodeFailed && res.Err != nil {
			return res.Err.Error()
		}
	}
	return ""
}

func sortNodeIDs(ids []types.NodeID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
}
