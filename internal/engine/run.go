package engine

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/shaiso/synapse/internal/domain"
)

// ErrStopped передаётся Observer, когда потребитель закрыл Execution раньше времени.
var ErrStopped = errors.New("execution stopped by consumer")

// Snapshot — содержимое Record сразу после завершения обработчика узла.
type Snapshot struct {
	// Step — порядковый номер посещения (с 1).
	Step int `json:"step"`

	// NodeID — узел, который только что выполнился.
	NodeID string `json:"node_id"`

	// Record — глубокая копия Record; потребитель не должен её изменять.
	Record domain.Record `json:"record"`

	// Changed — поля, изменённые этим посещением.
	Changed []string `json:"changed"`
}

// Execution — ленивый однопроходный поток снимков одного run.
//
// Использование:
//
//	exec := graph.Execute(ctx, rec)
//	for exec.Next() {
//	    snap := exec.Snapshot()
//	}
//	if err := exec.Err(); err != nil { ... }
//
// Узел выполняется только при вызове Next, поэтому потребитель сам задаёт темп.
// Поток не перезапускается: для нового run нужен новый Execute.
type Execution struct {
	graph *Graph
	ctx   context.Context
	opts  runOptions

	rec  domain.Record // Record run, принадлежит Execution
	prev domain.Record // копия Record на момент последнего снимка

	next    string
	pending error // ошибка маршрутизации, отложенная до следующего Next
	steps   int
	retries map[string]int

	current Snapshot
	err     error
	done    bool
}

// Execute начинает run. Начальный Record копируется, исходный не изменяется.
func (g *Graph) Execute(ctx context.Context, initial domain.Record, opts ...RunOption) *Execution {
	rec := initial.Clone()
	if rec == nil {
		rec = domain.NewRecord()
	}

	return &Execution{
		graph:   g,
		ctx:     ctx,
		opts:    newRunOptions(opts),
		rec:     rec,
		prev:    rec.Clone(),
		next:    g.entry,
		retries: make(map[string]int),
	}
}

// Stream возвращает run как iter.Seq2. Ошибка, если есть, приходит последним
// элементом с пустым Snapshot. Прекращение итерации закрывает Execution.
func (g *Graph) Stream(ctx context.Context, initial domain.Record, opts ...RunOption) iter.Seq2[Snapshot, error] {
	return func(yield func(Snapshot, error) bool) {
		exec := g.Execute(ctx, initial, opts...)
		for exec.Next() {
			if !yield(exec.Snapshot(), nil) {
				exec.Close()
				return
			}
		}
		if err := exec.Err(); err != nil {
			yield(Snapshot{}, err)
		}
	}
}

// Next выполняет следующий узел. Возвращает false, когда run завершён
// (терминальный маркер, ошибка или отмена контекста).
func (e *Execution) Next() bool {
	if e.done {
		return false
	}

	if e.pending != nil {
		e.finish(e.pending)
		return false
	}
	if e.next == End {
		e.finish(nil)
		return false
	}
	if err := e.ctx.Err(); err != nil {
		e.finish(err)
		return false
	}
	if e.steps >= e.opts.maxSteps {
		e.finish(&RunawayExecutionError{MaxSteps: e.opts.maxSteps, NextNode: e.next})
		return false
	}

	node := e.graph.nodes[e.next]
	e.steps++

	snap, err := e.visit(node)
	if err != nil {
		e.finish(err)
		return false
	}

	next, err := e.route(node.ID)
	if err != nil {
		// Снимок уже готов — отдаём его, ошибку вернёт следующий Next
		e.pending = err
	}
	e.next = next
	e.current = snap

	return true
}

// Snapshot возвращает снимок последнего выполненного узла.
func (e *Execution) Snapshot() Snapshot {
	return e.current
}

// Err возвращает ошибку, завершившую run, или nil.
func (e *Execution) Err() error {
	return e.err
}

// Steps возвращает количество посещённых узлов.
func (e *Execution) Steps() int {
	return e.steps
}

// Close прекращает run. Обработчики не держат ресурсов между вызовами,
// поэтому Close только помечает поток завершённым.
func (e *Execution) Close() {
	if e.done {
		return
	}
	e.done = true
	e.opts.observers.RunFinished(e.steps, ErrStopped)
	e.opts.logger.Debug("run stopped by consumer", "steps", e.steps)
}

// visit выполняет обработчик узла и собирает снимок.
func (e *Execution) visit(node *Node) (Snapshot, error) {
	ctx, span := e.opts.tracer.Start(e.ctx, "node "+node.ID,
		trace.WithAttributes(
			attribute.String("synapse.node_id", node.ID),
			attribute.Int("synapse.step", e.steps),
			attribute.Int("synapse.retry_count", e.rec.RetryCount()),
		),
	)
	defer span.End()

	e.opts.observers.NodeStarted(node.ID, e.steps)
	start := time.Now()

	err := e.invoke(ctx, node)

	duration := time.Since(start)
	e.opts.observers.NodeFinished(node.ID, e.steps, duration, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Snapshot{}, err
	}

	snap := Snapshot{
		Step:    e.steps,
		NodeID:  node.ID,
		Record:  e.rec.Clone(),
		Changed: e.rec.Diff(e.prev),
	}
	e.prev = e.rec.Clone()

	e.opts.logger.Debug("node finished",
		"node_id", node.ID,
		"step", e.steps,
		"status", e.rec.Status(),
		"duration", duration,
	)

	return snap, nil
}

// invoke вызывает обработчик, сливает результат и проверяет контракт шага.
func (e *Execution) invoke(ctx context.Context, node *Node) error {
	out, err := node.Handler(ctx, e.rec)
	if err != nil {
		return &NodeError{NodeID: node.ID, Step: e.steps, Err: err}
	}
	if out == nil {
		return &NodeError{NodeID: node.ID, Step: e.steps, Err: ErrNilRecord}
	}

	e.rec.Merge(out)

	if e.rec.Status() == "" {
		return &ContractError{NodeID: node.ID, Reason: "status is empty"}
	}
	if !e.rec.LogsExtend(e.prev) {
		return &ContractError{NodeID: node.ID, Reason: "logs must be extended append-only by at least one entry"}
	}

	return nil
}

// route выбирает следующий узел после from.
func (e *Execution) route(from string) (string, error) {
	ed := e.graph.edges[from]
	if !ed.conditional() {
		return ed.to, nil
	}

	decision := ed.decide(e.rec.Clone())

	if ed.retry != nil && decision == DecisionRetry {
		if e.retries[from] >= ed.retry.Ceiling {
			e.opts.logger.Warn("retry ceiling reached, routing to give-up branch",
				"node_id", from,
				"ceiling", ed.retry.Ceiling,
			)
			e.opts.observers.RetryRouted(from, e.retries[from], true)
			decision = DecisionGiveUp
		} else {
			e.retries[from]++
			e.opts.observers.RetryRouted(from, e.retries[from], false)
		}
	}

	to, ok := ed.routes[decision]
	if !ok {
		return "", &UnroutableDecisionError{
			NodeID:   from,
			Decision: decision,
			Known:    sortedDecisions(ed.routes),
		}
	}

	e.opts.logger.Debug("routed",
		"from", from,
		"decision", string(decision),
		"to", to,
	)
	return to, nil
}

// finish завершает поток с ошибкой или без.
func (e *Execution) finish(err error) {
	e.done = true
	e.err = err
	e.opts.observers.RunFinished(e.steps, err)

	if err != nil {
		e.opts.logger.Warn("run aborted", "steps", e.steps, "error", err)
		return
	}
	e.opts.logger.Debug("run finished", "steps", e.steps)
}

// String используется в логах.
func (s Snapshot) String() string {
	return fmt.Sprintf("%d:%s", s.Step, s.NodeID)
}
