package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/shaiso/synapse/internal/domain"
)

// step возвращает обработчик, который выставляет статус и пишет одну строку в журнал.
func step(id string) Handler {
	return func(_ context.Context, rec domain.Record) (domain.Record, error) {
		rec.SetStatus(id + " done")
		rec.AppendLog(id)
		return rec, nil
	}
}

func TestCompile_SimpleChain(t *testing.T) {
	b := NewBuilder()
	for _, id := range []string{"A", "B", "C"} {
		if err := b.AddNode(id, step(id)); err != nil {
			t.Fatalf("AddNode(%s): %v", id, err)
		}
	}
	b.SetEntryPoint("A")
	b.AddEdge("A", "B")
	b.AddEdge("B", "C")
	b.AddEdge("C", End)

	g, err := b.Compile()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if g.Size() != 3 {
		t.Errorf("expected 3 nodes, got %d", g.Size())
	}
	if g.Entry() != "A" {
		t.Errorf("expected entry A, got %s", g.Entry())
	}
	if diff := cmp.Diff([]string{"A", "B", "C"}, g.Nodes()); diff != "" {
		t.Errorf("nodes mismatch (-want +got):\n%s", diff)
	}
}

func TestAddNode_Duplicate(t *testing.T) {
	b := NewBuilder()
	if err := b.AddNode("A", step("A")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := b.AddNode("A", step("A"))

	var dup *DuplicateNodeError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateNodeError, got %v", err)
	}
	if dup.NodeID != "A" {
		t.Errorf("expected node A, got %s", dup.NodeID)
	}

	// Compile тоже должен упасть, даже если ошибку AddNode проигнорировали
	b.SetEntryPoint("A")
	b.AddEdge("A", End)
	if _, err := b.Compile(); !errors.Is(err, ErrDuplicateNode) {
		t.Errorf("expected ErrDuplicateNode from Compile, got %v", err)
	}
}

func TestAddNode_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		handler Handler
		wantErr error
	}{
		{name: "empty id", id: "", handler: step("x"), wantErr: ErrEmptyNodeID},
		{name: "reserved id", id: End, handler: step("x"), wantErr: ErrDuplicateNode},
		{name: "nil handler", id: "A", handler: nil, wantErr: ErrNilHandler},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewBuilder().AddNode(tt.id, tt.handler)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCompile_MissingEntryPoint(t *testing.T) {
	b := NewBuilder()
	b.AddNode("A", step("A"))
	b.AddEdge("A", End)

	_, err := b.Compile()

	var missing *MissingEntryPointError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingEntryPointError, got %v", err)
	}
	if !errors.Is(err, ErrMissingEntryPoint) {
		t.Error("error should unwrap to ErrMissingEntryPoint")
	}
}

func TestCompile_UnknownNode(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *Builder)
		want  string
	}{
		{
			name: "entry point",
			build: func(b *Builder) {
				b.SetEntryPoint("ghost")
				b.AddEdge("A", End)
			},
			want: "ghost",
		},
		{
			name: "edge target",
			build: func(b *Builder) {
				b.SetEntryPoint("A")
				b.AddEdge("A", "ghost")
			},
			want: "ghost",
		},
		{
			name: "edge source",
			build: func(b *Builder) {
				b.SetEntryPoint("A")
				b.AddEdge("A", End)
				b.AddEdge("ghost", "A")
			},
			want: "ghost",
		},
		{
			name: "route target",
			build: func(b *Builder) {
				b.SetEntryPoint("A")
				b.AddConditionalEdges("A",
					func(domain.Record) Decision { return "ok" },
					Routes{"ok": End, "bad": "ghost"},
				)
			},
			want: "ghost",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder()
			b.AddNode("A", step("A"))
			tt.build(b)

			_, err := b.Compile()

			var unknown *UnknownNodeError
			if !errors.As(err, &unknown) {
				t.Fatalf("expected UnknownNodeError, got %v", err)
			}
			if unknown.NodeID != tt.want {
				t.Errorf("expected node %s, got %s", tt.want, unknown.NodeID)
			}
			if !errors.Is(err, ErrUnknownNode) {
				t.Error("error should unwrap to ErrUnknownNode")
			}
		})
	}
}

func TestCompile_EdgeErrors(t *testing.T) {
	decide := func(domain.Record) Decision { return "ok" }

	tests := []struct {
		name    string
		build   func(b *Builder)
		wantErr error
	}{
		{
			name:    "dead end",
			build:   func(b *Builder) {},
			wantErr: ErrDeadEnd,
		},
		{
			name: "two outgoing declarations",
			build: func(b *Builder) {
				b.AddEdge("A", End)
				b.AddEdge("A", End)
			},
			wantErr: ErrAmbiguousEdge,
		},
		{
			name: "empty routes",
			build: func(b *Builder) {
				b.AddConditionalEdges("A", decide, Routes{})
			},
			wantErr: ErrEmptyRoutes,
		},
		{
			name: "nil decision",
			build: func(b *Builder) {
				b.AddConditionalEdges("A", nil, Routes{"ok": End})
			},
			wantErr: ErrNilDecision,
		},
		{
			name: "negative retry ceiling",
			build: func(b *Builder) {
				b.AddRetryLoop("A", RetryLoop{
					Decide:   decide,
					Producer: "A",
					Success:  End,
					GiveUp:   End,
					Ceiling:  -1,
				})
			},
			wantErr: ErrInvalidRetryLoop,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder()
			b.AddNode("A", step("A"))
			b.SetEntryPoint("A")
			tt.build(b)

			_, err := b.Compile()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestAddConditionalEdges_CopiesRoutes(t *testing.T) {
	routes := Routes{"ok": End}

	b := NewBuilder()
	b.AddNode("A", step("A"))
	b.SetEntryPoint("A")
	b.AddConditionalEdges("A", func(domain.Record) Decision { return "ok" }, routes)

	// Изменение исходной таблицы после объявления не должно влиять на граф
	routes["bad"] = "ghost"

	if _, err := b.Compile(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGraph_Transitions(t *testing.T) {
	b := NewBuilder()
	for _, id := range []string{"producer", "validator", "ship", "handoff"} {
		b.AddNode(id, step(id))
	}
	b.SetEntryPoint("producer")
	b.AddEdge("producer", "validator")
	b.AddRetryLoop("validator", RetryLoop{
		Decide:   func(domain.Record) Decision { return DecisionSuccess },
		Producer: "producer",
		Success:  "ship",
		GiveUp:   "handoff",
		Ceiling:  DefaultRetryCeiling,
	})
	b.AddEdge("ship", End)
	b.AddEdge("handoff", End)

	g, err := b.Compile()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []Transition{
		{From: "producer", To: "validator"},
		{From: "validator", To: "handoff", Decision: DecisionGiveUp},
		{From: "validator", To: "producer", Decision: DecisionRetry, Retry: true},
		{From: "validator", To: "ship", Decision: DecisionSuccess},
		{From: "ship", To: End},
		{From: "handoff", To: End},
	}
	if diff := cmp.Diff(want, g.Transitions()); diff != "" {
		t.Errorf("transitions mismatch (-want +got):\n%s", diff)
	}

	ceiling, ok := g.RetryCeiling("validator")
	if !ok || ceiling != DefaultRetryCeiling {
		t.Errorf("expected retry ceiling %d, got %d (ok=%v)", DefaultRetryCeiling, ceiling, ok)
	}
	if _, ok := g.RetryCeiling("producer"); ok {
		t.Error("producer should not declare a retry loop")
	}
}
