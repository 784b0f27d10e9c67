// Package orchestrator управляет выполнением runs.
//
// Service отвечает за:
//   - Создание Run и начального Record из запроса
//   - Выполнение графа pipeline шаг за шагом
//   - Сохранение каждого снимка и публикацию событий
//   - Получение отложенных runs из очереди RabbitMQ
//   - Финализацию run (SUCCEEDED/FAILED/CANCELLED, исход, число повторов)
//
// Маршрутизацию и потолки повторов обеспечивает engine; Service их
// не дублирует.
package orchestrator
