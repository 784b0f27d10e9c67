package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/shaiso/synapse/internal/domain"
	"github.com/shaiso/synapse/internal/engine"
)

// Маркеры результатов проверки в test_results.
const (
	MarkerFail = "FAIL"
	MarkerPass = "PASS"
)

// Check — одна структурная проверка сгенерированного backend.
type Check struct {
	// Needle — подстрока, которая должна присутствовать в коде.
	Needle string

	// Problem — описание ошибки, если подстроки нет.
	Problem string
}

// BackendChecks — проверки backend_code.
var BackendChecks = []Check{
	{Needle: "FastAPI", Problem: "Backend does not import FastAPI."},
	{Needle: `@app.post("/registrations")`, Problem: "Missing POST /registrations endpoint."},
	{Needle: "health", Problem: "Missing health check endpoint."},
}

// RunChecks возвращает список проблем в коде (пустой — всё в порядке).
func RunChecks(code string, checks []Check) []string {
	var problems []string
	for _, c := range checks {
		if !strings.Contains(code, c.Needle) {
			problems = append(problems, c.Problem)
		}
	}
	return problems
}

// Sentinel проверяет backend и решает, нужен ли повтор.
//
// При провале, пока retry_count меньше потолка, увеличивает retry_count
// и отправляет работу обратно backend_coder. На потолке выставляет
// retries_exhausted, и run уходит на передачу человеку.
type Sentinel struct {
	agent
	ceiling int
}

// NewSentinel создаёт Sentinel с потолком повторов ceiling.
// Отрицательное значение заменяется на engine.DefaultRetryCeiling.
func NewSentinel(ceiling int) *Sentinel {
	if ceiling < 0 {
		ceiling = engine.DefaultRetryCeiling
	}
	return &Sentinel{
		agent:   agent{id: StepSentinel, name: "The Sentinel"},
		ceiling: ceiling,
	}
}

// Ceiling возвращает потолок повторов.
func (s *Sentinel) Ceiling() int {
	return s.ceiling
}

// Handle проверяет backend_code и заполняет test_results.
func (s *Sentinel) Handle(ctx context.Context, rec domain.Record) (domain.Record, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	attempt := rec.RetryCount() + 1
	problems := RunChecks(rec.String(domain.FieldBackendCode), BackendChecks)

	if len(problems) == 0 {
		msg := "✅ TESTS " + MarkerPass + ": Backend structure and key endpoints validated."
		rec[domain.FieldTestResults] = msg
		rec.SetStatus(fmt.Sprintf("Running automated checks (attempt %d): %s", attempt, MarkerPass))
		rec.AppendLog(msg)
		return rec, nil
	}

	msg := fmt.Sprintf("❌ TESTS %s on attempt %d: %s", MarkerFail, attempt, strings.Join(problems, "; "))
	rec[domain.FieldTestResults] = msg
	rec.SetStatus(fmt.Sprintf("Running automated checks (attempt %d): %s", attempt, MarkerFail))
	rec.AppendLog(msg)

	if rec.RetryCount() < s.ceiling {
		rec.IncrementRetry()
	} else {
		rec[domain.FieldRetriesExhausted] = true
		rec.AppendLog(fmt.Sprintf("The Sentinel: %d retries used, handing off.", s.ceiling))
	}

	return rec, nil
}

// SentinelDecision — функция решения для рёбер sentinel.
func SentinelDecision(rec domain.Record) engine.Decision {
	switch {
	case !rec.Contains(domain.FieldTestResults, MarkerFail):
		return engine.DecisionSuccess
	case rec.Bool(domain.FieldRetriesExhausted):
		return engine.DecisionGiveUp
	default:
		return engine.DecisionRetry
	}
}
