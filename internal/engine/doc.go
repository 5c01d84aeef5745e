// Package engine содержит структурную часть исполнения flow.
//
// Включает:
//   - parser.go — валидация FlowSpec (ID, типы, зависимости, retry)
//   - dag.go    — построение и обход DAG (directed acyclic graph)
//
// Engine отвечает за понимание структуры flow и определение
// порядка выполнения шагов на основе их зависимостей.
// Сами шаги исполняет пакет runner.
package engine
