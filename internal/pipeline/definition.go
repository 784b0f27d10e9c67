package pipeline

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/shaiso/synapse/internal/engine"
)

//go:embed pipeline.hcl
var defaultSource []byte

// DefaultFile — имя встроенного определения в сообщениях об ошибках.
const DefaultFile = "pipeline.hcl"

// Ошибки определения pipeline.
var (
	// ErrParse — файл определения не разбирается как HCL.
	ErrParse = errors.New("pipeline parse error")

	// ErrInvalidDefinition — определение синтаксически верно, но противоречиво.
	ErrInvalidDefinition = errors.New("invalid pipeline definition")

	// ErrUnknownStep — шаг определения не найден в реестре агентов.
	ErrUnknownStep = errors.New("unknown pipeline step")

	// ErrUnknownDecision — retry блок ссылается на неизвестную функцию решения.
	ErrUnknownDecision = errors.New("unknown decision function")
)

// Definition — декларативное описание графа агентов.
type Definition struct {
	// Entry — ID первого шага.
	Entry string `hcl:"entry"`

	// MaxSteps — лимит посещений узлов (0 — по умолчанию engine).
	MaxSteps int `hcl:"max_steps,optional"`

	// Steps — шаги в порядке объявления.
	Steps []StepDef `hcl:"step,block"`
}

// StepDef — один шаг: либо безусловный переход next, либо retry блок.
type StepDef struct {
	ID    string    `hcl:"id,label"`
	Next  *string   `hcl:"next,optional"`
	Retry *RetryDef `hcl:"retry,block"`
}

// RetryDef — цикл повторов validator → producer.
type RetryDef struct {
	Decision string `hcl:"decision,optional"`
	Producer string `hcl:"producer"`
	Success  string `hcl:"success"`
	GiveUp   string `hcl:"give_up"`
	Ceiling  *int   `hcl:"ceiling,optional"`
}

// evalContext открывает переменную end для ссылок на терминальный маркер.
func evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"end": cty.StringVal(engine.End),
		},
	}
}

// Parse разбирает определение pipeline из HCL.
func Parse(src []byte, filename string) (*Definition, error) {
	parser := hclparse.NewParser()

	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: %s: %w", ErrParse, filename, diags)
	}

	var def Definition
	diags = gohcl.DecodeBody(file.Body, evalContext(), &def)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: %s: %w", ErrParse, filename, diags)
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}

	return &def, nil
}

// LoadFile читает определение из файла.
func LoadFile(path string) (*Definition, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline file: %w", err)
	}
	return Parse(src, path)
}

// Default возвращает встроенное определение.
func Default() (*Definition, error) {
	return Parse(defaultSource, DefaultFile)
}

// Load читает определение из path или возвращает встроенное, если path пуст.
func Load(path string) (*Definition, error) {
	if path == "" {
		return Default()
	}
	return LoadFile(path)
}

// Validate проверяет то, что не выражается схемой HCL.
// Ссылки на узлы проверяет engine при Compile.
func (d *Definition) Validate() error {
	if d.MaxSteps < 0 {
		return fmt.Errorf("%w: max_steps must be >= 0, got %d", ErrInvalidDefinition, d.MaxSteps)
	}

	for _, s := range d.Steps {
		switch {
		case s.Next != nil && s.Retry != nil:
			return fmt.Errorf("%w: step %s: next and retry are mutually exclusive", ErrInvalidDefinition, s.ID)
		case s.Next == nil && s.Retry == nil:
			return fmt.Errorf("%w: step %s: either next or retry is required", ErrInvalidDefinition, s.ID)
		case s.Retry != nil && s.Retry.Ceiling != nil && *s.Retry.Ceiling < 0:
			return fmt.Errorf("%w: step %s: ceiling must be >= 0", ErrInvalidDefinition, s.ID)
		}
	}

	return nil
}

// RetryCeiling возвращает потолок первого retry блока.
func (d *Definition) RetryCeiling() (int, bool) {
	for _, s := range d.Steps {
		if s.Retry != nil && s.Retry.Ceiling != nil {
			return *s.Retry.Ceiling, true
		}
	}
	return 0, false
}
