// Package engine содержит движок выполнения графа шагов.
//
// Включает:
//   - graph.go   — Builder и скомпилированный Graph (узлы, рёбра, валидация)
//   - retry.go   — ограниченный цикл повторов validator → producer
//   - run.go     — ленивый поток снимков Execution, Stream и Invoke
//   - options.go — опции run: лимит шагов, Observer, tracer, logger
//
// Граф собирается один раз и после Compile не изменяется. Каждый run
// получает собственную копию Record; узлы одного run выполняются строго
// последовательно, разные run могут идти параллельно на одном Graph.
package engine
