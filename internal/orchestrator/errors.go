package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrRunNotFound — run не найден в БД.
	ErrRunNotFound = errors.New("run not found")

	// ErrRunAlreadyActive — run уже обрабатывается.
	ErrRunAlreadyActive = errors.New("run already being processed")

	// ErrRunNotPending — run не в статусе PENDING.
	ErrRunNotPending = errors.New("run is not in PENDING status")

	// ErrInvalidRequest — параметры запуска некорректны.
	ErrInvalidRequest = errors.New("invalid run request")

	// ErrQueueDisabled — асинхронный запуск без подключения к RabbitMQ.
	ErrQueueDisabled = errors.New("run queue is disabled")

	// ErrSinkClosed — получатель снимков отказался принимать их дальше.
	ErrSinkClosed = errors.New("snapshot sink closed")

	// ErrNoConnection — Start вызван без соединения с RabbitMQ.
	ErrNoConnection = errors.New("orchestrator has no mq connection")
)
