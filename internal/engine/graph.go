package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/shaiso/synapse/internal/domain"
)

// End — терминальный маркер. Ребро в End завершает run.
const End = "__end__"

// Handler — обработчик узла.
//
// Получает Record текущего run в эксклюзивное пользование на время вызова,
// должен выставить status и дописать хотя бы одну строку в logs.
// Возвращает тот же (изменённый) Record или Record с изменёнными полями:
// engine сливает результат в Record run поле за полем.
type Handler func(ctx context.Context, rec domain.Record) (domain.Record, error)

// Decision — метка исхода условного узла.
type Decision string

// DecisionFunc выбирает метку по текущему (после обработчика) Record.
// Не должна изменять Record.
type DecisionFunc func(rec domain.Record) Decision

// Routes — таблица маршрутов: метка → ID узла назначения (или End).
type Routes map[Decision]string

// Node — именованный шаг графа.
type Node struct {
	// ID — уникальный идентификатор узла в графе.
	ID string

	// Handler — функция шага.
	Handler Handler
}

// edge — исходящее объявление узла: безусловное ребро либо условные рёбра.
type edge struct {
	to     string
	decide DecisionFunc
	routes Routes
	retry  *RetryLoop
}

func (e *edge) conditional() bool {
	return e.decide != nil || e.routes != nil
}

// Builder собирает граф. Граф становится неизменяемым после Compile.
//
// Ссылки на узлы (точка входа, рёбра) проверяются только в Compile,
// поэтому порядок объявлений не важен.
type Builder struct {
	nodes map[string]*Node
	order []string
	entry string
	edges map[string][]*edge
	errs  []error
}

// NewBuilder создаёт пустой Builder.
func NewBuilder() *Builder {
	return &Builder{
		nodes: make(map[string]*Node),
		edges: make(map[string][]*edge),
	}
}

// AddNode регистрирует узел.
// Повторный ID возвращает *DuplicateNodeError; ошибка запоминается и для Compile.
func (b *Builder) AddNode(id string, handler Handler) error {
	var err error
	switch {
	case id == "":
		err = NewValidationError("", "node has empty ID", ErrEmptyNodeID)
	case id == End:
		err = NewValidationError(id, "node ID is reserved for the terminal marker", ErrDuplicateNode)
	case b.nodes[id] != nil:
		err = &DuplicateNodeError{NodeID: id}
	case handler == nil:
		err = NewValidationError(id, "node has nil handler", ErrNilHandler)
	}
	if err != nil {
		b.errs = append(b.errs, err)
		return err
	}

	b.nodes[id] = &Node{ID: id, Handler: handler}
	b.order = append(b.order, id)
	return nil
}

// SetEntryPoint задаёт первый узел run.
func (b *Builder) SetEntryPoint(id string) {
	b.entry = id
}

// AddEdge объявляет безусловный переход from → to. to может быть End.
func (b *Builder) AddEdge(from, to string) {
	b.edges[from] = append(b.edges[from], &edge{to: to})
}

// AddConditionalEdges объявляет условные переходы из from.
// decide вызывается после обработчика from; его метка ищется в routes.
func (b *Builder) AddConditionalEdges(from string, decide DecisionFunc, routes Routes) {
	copied := make(Routes, len(routes))
	for label, to := range routes {
		copied[label] = to
	}
	b.edges[from] = append(b.edges[from], &edge{decide: decide, routes: copied})
}

// Compile проверяет граф и возвращает его неизменяемую версию.
func (b *Builder) Compile() (*Graph, error) {
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}

	if b.entry == "" {
		return nil, &MissingEntryPointError{}
	}
	if b.nodes[b.entry] == nil {
		return nil, &UnknownNodeError{NodeID: b.entry, Field: "entry point"}
	}

	// Источники рёбер — в отсортированном порядке, чтобы ошибка была детерминированной
	sources := make([]string, 0, len(b.edges))
	for from := range b.edges {
		sources = append(sources, from)
	}
	sort.Strings(sources)

	edges := make(map[string]*edge, len(b.edges))
	for _, from := range sources {
		if b.nodes[from] == nil {
			return nil, &UnknownNodeError{NodeID: from, Field: "edge source"}
		}

		declared := b.edges[from]
		if len(declared) > 1 {
			return nil, NewValidationError(from,
				fmt.Sprintf("%d outgoing declarations, expected one", len(declared)), ErrAmbiguousEdge)
		}

		e := declared[0]
		if err := b.validateEdge(from, e); err != nil {
			return nil, err
		}
		edges[from] = e
	}

	for _, id := range b.order {
		if edges[id] == nil {
			return nil, NewValidationError(id, "node has no outgoing edge (use End to terminate)", ErrDeadEnd)
		}
	}

	nodes := make(map[string]*Node, len(b.nodes))
	for id, n := range b.nodes {
		nodes[id] = n
	}
	order := make([]string, len(b.order))
	copy(order, b.order)

	return &Graph{
		nodes: nodes,
		order: order,
		entry: b.entry,
		edges: edges,
	}, nil
}

// validateEdge проверяет назначения одного исходящего объявления.
func (b *Builder) validateEdge(from string, e *edge) error {
	if !e.conditional() {
		return b.checkTarget(from, "edge", e.to)
	}

	if e.decide == nil {
		return NewValidationError(from, "conditional edges have nil decision function", ErrNilDecision)
	}
	if len(e.routes) == 0 {
		return NewValidationError(from, "conditional edges have no routes", ErrEmptyRoutes)
	}

	for _, label := range sortedDecisions(e.routes) {
		if err := b.checkTarget(from, "route "+string(label), e.routes[label]); err != nil {
			return err
		}
	}

	if e.retry != nil {
		return e.retry.validate(from)
	}
	return nil
}

func (b *Builder) checkTarget(from, field, to string) error {
	if to == End {
		return nil
	}
	if to == "" || b.nodes[to] == nil {
		return &UnknownNodeError{NodeID: to, From: from, Field: field}
	}
	return nil
}

// Graph — скомпилированный граф. Неизменяем; один Graph может
// одновременно выполнять любое количество независимых run.
type Graph struct {
	nodes map[string]*Node
	order []string
	entry string
	edges map[string]*edge
}

// Entry возвращает ID точки входа.
func (g *Graph) Entry() string {
	return g.entry
}

// Nodes возвращает ID узлов в порядке регистрации.
func (g *Graph) Nodes() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Size возвращает количество узлов.
func (g *Graph) Size() int {
	return len(g.nodes)
}

// Transition — описание одного перехода графа для отображения.
type Transition struct {
	From     string   `json:"from"`
	To       string   `json:"to"`
	Decision Decision `json:"decision,omitempty"`
	Retry    bool     `json:"retry,omitempty"`
}

// Transitions возвращает все переходы графа: по узлам в порядке регистрации,
// условные — в порядке меток.
func (g *Graph) Transitions() []Transition {
	out := make([]Transition, 0, len(g.edges))
	for _, from := range g.order {
		e := g.edges[from]
		if !e.conditional() {
			out = append(out, Transition{From: from, To: e.to})
			continue
		}
		for _, label := range sortedDecisions(e.routes) {
			out = append(out, Transition{
				From:     from,
				To:       e.routes[label],
				Decision: label,
				Retry:    e.retry != nil && label == DecisionRetry,
			})
		}
	}
	return out
}

// RetryCeiling возвращает потолок повторов цикла, объявленного на узле validator.
func (g *Graph) RetryCeiling(validator string) (int, bool) {
	e := g.edges[validator]
	if e == nil || e.retry == nil {
		return 0, false
	}
	return e.retry.Ceiling, true
}

func sortedDecisions(routes Routes) []Decision {
	labels := make([]Decision, 0, len(routes))
	for label := range routes {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })
	return labels
}
