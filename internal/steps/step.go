package steps

import (
	"context"
	"errors"
	"fmt"

	"github.com/shaiso/synapse/internal/domain"
)

// Ошибки шагов.
var (
	// ErrStepNotFound — шаг не найден в реестре.
	ErrStepNotFound = errors.New("step not found")

	// ErrStepCancelled — выполнение шага отменено.
	ErrStepCancelled = errors.New("step execution cancelled")

	// ErrTemplateParse — ошибка парсинга шаблона артефакта.
	ErrTemplateParse = errors.New("template parse error")

	// ErrTemplateRender — ошибка рендеринга шаблона артефакта.
	ErrTemplateRender = errors.New("template render error")
)

// Step — агент pipeline.
//
// Каждый агент (ado_connector, sentinel, ...) реализует этот интерфейс.
// Handle получает Record run, выставляет status, дописывает хотя бы одну
// строку в logs и возвращает тот же Record. Handle не хранит состояния
// между вызовами, поэтому один Step обслуживает любое количество run.
type Step interface {
	// ID возвращает идентификатор узла.
	ID() string

	// Name возвращает отображаемое имя агента.
	Name() string

	// Handle выполняет шаг.
	Handle(ctx context.Context, rec domain.Record) (domain.Record, error)
}

// Options — настройки стандартных агентов.
type Options struct {
	// RetryCeiling — сколько раз sentinel может вернуть работу backend_coder.
	RetryCeiling int
}

// checkContext возвращает ErrStepCancelled, если контекст уже отменён.
func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrStepCancelled, ctx.Err())
	default:
		return nil
	}
}
