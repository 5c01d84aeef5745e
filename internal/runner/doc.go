// Package runner выполняет runs flows в текущем процессе.
//
// Runner:
//   - Строит DAG по FlowSpec
//   - Запускает готовые шаги параллельно (горутина на шаг)
//   - Передаёт результаты шагов зависимым шагам
//   - Применяет таймаут и retry политику шага
//   - После первого упавшего шага перестаёт запускать новые,
//     дожидается уже запущенных и завершает run с FAILED
//   - Сохраняет runs и tasks, пишет метрики, публикует run.completed
package runner
