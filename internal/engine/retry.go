package engine

import "fmt"

// Метки цикла повторов.
const (
	DecisionSuccess Decision = "success"
	DecisionRetry   Decision = "retry"
	DecisionGiveUp  Decision = "max_retries"
)

// DefaultRetryCeiling — потолок повторов по умолчанию.
const DefaultRetryCeiling = 2

// RetryLoop — ограниченный цикл "validator → producer".
//
// Validator проверяет артефакт, собранный producer, и решает:
//   - DecisionSuccess — переход в Success
//   - DecisionRetry — обратно в Producer (сам validator увеличивает retry_count)
//   - DecisionGiveUp — переход в GiveUp (передача человеку)
//
// Engine дополнительно считает переходы retry в рамках run: после Ceiling
// повторов метка retry принудительно заменяется на max_retries, поэтому
// Producer выполняется не более Ceiling+1 раз, даже если Decide ошибается.
type RetryLoop struct {
	// Decide — функция решения validator.
	Decide DecisionFunc

	// Producer — узел, который перегенерирует артефакт.
	Producer string

	// Success — куда идти при успешной проверке.
	Success string

	// GiveUp — куда идти после исчерпания повторов.
	GiveUp string

	// Ceiling — максимальное количество повторов (0 — без повторов).
	Ceiling int
}

// AddRetryLoop объявляет условные рёбра validator по протоколу RetryLoop.
func (b *Builder) AddRetryLoop(validator string, loop RetryLoop) {
	l := loop
	b.edges[validator] = append(b.edges[validator], &edge{
		decide: loop.Decide,
		routes: Routes{
			DecisionSuccess: loop.Success,
			DecisionRetry:   loop.Producer,
			DecisionGiveUp:  loop.GiveUp,
		},
		retry: &l,
	})
}

func (l *RetryLoop) validate(validator string) error {
	if l.Ceiling < 0 {
		return NewValidationError(validator,
			fmt.Sprintf("retry ceiling must be >= 0, got %d", l.Ceiling), ErrInvalidRetryLoop)
	}
	if l.Producer == End {
		return NewValidationError(validator, "retry producer cannot be the terminal marker", ErrInvalidRetryLoop)
	}
	return nil
}
