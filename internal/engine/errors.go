package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Ошибки построения графа.
var (
	// ErrDuplicateNode — узел с таким ID уже зарегистрирован.
	ErrDuplicateNode = errors.New("duplicate node")

	// ErrUnknownNode — ссылка на незарегистрированный узел.
	ErrUnknownNode = errors.New("unknown node")

	// ErrMissingEntryPoint — у графа нет точки входа.
	ErrMissingEntryPoint = errors.New("missing entry point")

	// ErrEmptyNodeID — узел без ID.
	ErrEmptyNodeID = errors.New("node has empty ID")

	// ErrNilHandler — узел без обработчика.
	ErrNilHandler = errors.New("node has nil handler")

	// ErrAmbiguousEdge — у узла больше одного исходящего объявления.
	ErrAmbiguousEdge = errors.New("node has more than one outgoing edge")

	// ErrDeadEnd — у узла нет исходящих рёбер.
	ErrDeadEnd = errors.New("node has no outgoing edge")

	// ErrEmptyRoutes — условные рёбра без таблицы маршрутов.
	ErrEmptyRoutes = errors.New("conditional edges have no routes")

	// ErrNilDecision — условные рёбра без функции решения.
	ErrNilDecision = errors.New("conditional edges have nil decision function")

	// ErrInvalidRetryLoop — некорректное объявление цикла повторов.
	ErrInvalidRetryLoop = errors.New("invalid retry loop")
)

// Ошибки выполнения.
var (
	// ErrUnroutableDecision — функция решения вернула метку без маршрута.
	ErrUnroutableDecision = errors.New("unroutable decision")

	// ErrRunawayExecution — превышен глобальный лимит посещений узлов.
	ErrRunawayExecution = errors.New("runaway execution")

	// ErrContractViolation — обработчик нарушил контракт шага.
	ErrContractViolation = errors.New("step contract violation")

	// ErrNilRecord — обработчик вернул nil вместо Record.
	ErrNilRecord = errors.New("handler returned nil record")
)

// DuplicateNodeError — повторная регистрация узла.
type DuplicateNodeError struct {
	NodeID string
}

func (e *DuplicateNodeError) Error() string {
	return "duplicate node: " + e.NodeID
}

func (e *DuplicateNodeError) Unwrap() error { return ErrDuplicateNode }

// UnknownNodeError — точка входа или ребро ссылаются на несуществующий узел.
type UnknownNodeError struct {
	NodeID string // на что сослались
	From   string // откуда (пусто для точки входа)
	Field  string // entry_point, edge, route:<label>
}

func (e *UnknownNodeError) Error() string {
	if e.From == "" {
		return fmt.Sprintf("%s references unknown node: %s", e.Field, e.NodeID)
	}
	return fmt.Sprintf("node %s: %s references unknown node: %s", e.From, e.Field, e.NodeID)
}

func (e *UnknownNodeError) Unwrap() error { return ErrUnknownNode }

// MissingEntryPointError — граф собран без SetEntryPoint.
type MissingEntryPointError struct{}

func (e *MissingEntryPointError) Error() string {
	return "graph has no entry point"
}

func (e *MissingEntryPointError) Unwrap() error { return ErrMissingEntryPoint }

// UnroutableDecisionError — метка решения не найдена в таблице маршрутов.
type UnroutableDecisionError struct {
	NodeID   string
	Decision Decision
	Known    []Decision
}

func (e *UnroutableDecisionError) Error() string {
	known := make([]string, len(e.Known))
	for i, d := range e.Known {
		known[i] = string(d)
	}
	return fmt.Sprintf("node %s: decision %q has no route (known: %s)",
		e.NodeID, e.Decision, strings.Join(known, ", "))
}

func (e *UnroutableDecisionError) Unwrap() error { return ErrUnroutableDecision }

// RunawayExecutionError — run посетил больше узлов, чем разрешено.
type RunawayExecutionError struct {
	MaxSteps int
	NextNode string // узел, который не был выполнен
}

func (e *RunawayExecutionError) Error() string {
	return fmt.Sprintf("run exceeded %d node visits (next node: %s)", e.MaxSteps, e.NextNode)
}

func (e *RunawayExecutionError) Unwrap() error { return ErrRunawayExecution }

// NodeError — ошибка обработчика узла. Engine её не интерпретирует,
// только добавляет ID узла и номер посещения.
type NodeError struct {
	NodeID string
	Step   int
	Err    error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s (step %d): %v", e.NodeID, e.Step, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }

// ContractError — обработчик не выставил статус или переписал журнал.
type ContractError struct {
	NodeID string
	Reason string
}

func (e *ContractError) Error() string {
	return "node " + e.NodeID + ": " + e.Reason
}

func (e *ContractError) Unwrap() error { return ErrContractViolation }

// ValidationError — прочие ошибки валидации графа с контекстом.
type ValidationError struct {
	NodeID  string // ID узла, где произошла ошибка
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.NodeID != "" {
		return "node " + e.NodeID + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(nodeID, message string, err error) *ValidationError {
	return &ValidationError{
		NodeID:  nodeID,
		Message: message,
		Err:     err,
	}
}
