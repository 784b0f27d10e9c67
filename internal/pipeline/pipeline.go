package pipeline

import (
	"fmt"

	"github.com/shaiso/synapse/internal/engine"
	"github.com/shaiso/synapse/internal/steps"
)

// DefaultDecision — функция решения retry блока по умолчанию.
const DefaultDecision = "test_results"

// Decisions — известные функции решения retry блоков.
var Decisions = map[string]engine.DecisionFunc{
	DefaultDecision: steps.SentinelDecision,
}

// Options — параметры сборки pipeline.
type Options struct {
	// RetryCeiling переопределяет ceiling из определения (nil — из определения).
	RetryCeiling *int

	// MaxSteps переопределяет max_steps из определения (0 — из определения).
	MaxSteps int

	// Registry — реестр агентов (nil — steps.DefaultRegistry с итоговым потолком).
	Registry *steps.Registry
}

// Pipeline — скомпилированный граф агентов с параметрами run.
type Pipeline struct {
	Graph        *engine.Graph
	Registry     *steps.Registry
	Definition   *Definition
	MaxSteps     int
	RetryCeiling int
}

// New собирает Pipeline из определения.
func New(def *Definition, opts Options) (*Pipeline, error) {
	ceiling := engine.DefaultRetryCeiling
	if c, ok := def.RetryCeiling(); ok {
		ceiling = c
	}
	if opts.RetryCeiling != nil {
		ceiling = *opts.RetryCeiling
	}

	maxSteps := engine.DefaultMaxSteps
	if def.MaxSteps > 0 {
		maxSteps = def.MaxSteps
	}
	if opts.MaxSteps > 0 {
		maxSteps = opts.MaxSteps
	}

	registry := opts.Registry
	if registry == nil {
		registry = steps.DefaultRegistry(steps.Options{RetryCeiling: ceiling})
	}

	graph, err := Build(def, registry, ceiling)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		Graph:        graph,
		Registry:     registry,
		Definition:   def,
		MaxSteps:     maxSteps,
		RetryCeiling: ceiling,
	}, nil
}

// Build компилирует граф: каждый шаг определения становится узлом
// с обработчиком агента из реестра.
func Build(def *Definition, registry *steps.Registry, ceiling int) (*engine.Graph, error) {
	b := engine.NewBuilder()

	for _, s := range def.Steps {
		if !registry.Has(s.ID) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownStep, s.ID)
		}
		step, err := registry.Get(s.ID)
		if err != nil {
			return nil, err
		}
		if err := b.AddNode(s.ID, step.Handle); err != nil {
			return nil, err
		}
	}

	if def.Entry != "" {
		b.SetEntryPoint(def.Entry)
	}

	for _, s := range def.Steps {
		if s.Next != nil {
			b.AddEdge(s.ID, *s.Next)
			continue
		}

		name := s.Retry.Decision
		if name == "" {
			name = DefaultDecision
		}
		decide, ok := Decisions[name]
		if !ok {
			return nil, fmt.Errorf("%w: step %s: %s", ErrUnknownDecision, s.ID, name)
		}

		b.AddRetryLoop(s.ID, engine.RetryLoop{
			Decide:   decide,
			Producer: s.Retry.Producer,
			Success:  s.Retry.Success,
			GiveUp:   s.Retry.GiveUp,
			Ceiling:  ceiling,
		})
	}

	return b.Compile()
}

// RunOptions возвращает опции engine, общие для всех run этого pipeline.
func (p *Pipeline) RunOptions() []engine.RunOption {
	return []engine.RunOption{engine.WithMaxSteps(p.MaxSteps)}
}

// NodeInfo — узел pipeline для отображения.
type NodeInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Description — описание pipeline для API и CLI.
type Description struct {
	Entry        string              `json:"entry"`
	MaxSteps     int                 `json:"max_steps"`
	RetryCeiling int                 `json:"retry_ceiling"`
	Nodes        []NodeInfo          `json:"nodes"`
	Transitions  []engine.Transition `json:"transitions"`
}

// Describe возвращает описание графа.
func (p *Pipeline) Describe() Description {
	ids := p.Graph.Nodes()
	nodes := make([]NodeInfo, len(ids))
	for i, id := range ids {
		nodes[i] = NodeInfo{ID: id, Name: p.Registry.Name(id)}
	}

	transitions := p.Graph.Transitions()

	// Потолок берётся из скомпилированного цикла, а не из опций
	ceiling := p.RetryCeiling
	for _, t := range transitions {
		if !t.Retry {
			continue
		}
		if c, ok := p.Graph.RetryCeiling(t.From); ok {
			ceiling = c
		}
		break
	}

	return Description{
		Entry:        p.Graph.Entry(),
		MaxSteps:     p.MaxSteps,
		RetryCeiling: ceiling,
		Nodes:        nodes,
		Transitions:  transitions,
	}
}
