package domain

// RunStatus — статус выполнения run.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ FAILED
//	          (или) → CANCELLED (из PENDING или RUNNING)
type RunStatus string

const (
	// RunStatusPending — run создан, но ещё не начал выполняться.
	RunStatusPending RunStatus = "PENDING"

	// RunStatusRunning — run в процессе выполнения.
	RunStatusRunning RunStatus = "RUNNING"

	// RunStatusSucceeded — граф дошёл до терминального маркера.
	RunStatusSucceeded RunStatus = "SUCCEEDED"

	// RunStatusFailed — run прерван фатальной ошибкой.
	RunStatusFailed RunStatus = "FAILED"

	// RunStatusCancelled — потребитель прекратил выполнение.
	RunStatusCancelled RunStatus = "CANCELLED"
)

// IsTerminal возвращает true, если статус финальный (run завершён).
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusFailed, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// IsValid проверяет, что статус известен.
func (s RunStatus) IsValid() bool {
	switch s {
	case RunStatusPending, RunStatusRunning, RunStatusSucceeded, RunStatusFailed, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// Outcome — чем закончился pipeline с точки зрения пользователя.
//
// SUCCEEDED run может иметь любой исход: передача человеку после
// исчерпания повторов — штатный путь, а не ошибка.
type Outcome string

const (
	// OutcomeDeployed — проверки прошли, артефакты готовы.
	OutcomeDeployed Outcome = "deployed"

	// OutcomeHandedOff — проверки не прошли после всех повторов, нужен человек.
	OutcomeHandedOff Outcome = "handed_off"
)
