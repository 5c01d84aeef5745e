// Package flows содержит определения flows и реестр, по которому их
// находят runner, scheduler, API и CLI.
//
// Flow = декларативный FlowSpec (шаги и depends_on) + реализации шагов (Task).
// Порядок выполнения определяет только граф зависимостей.
//
// Зарегистрированные flows:
//   - DBT Orchestration Flow — запускает DBT Job Flow, ждёт его, затем
//     параллельно запускает и ждёт два feature store flow
//   - Pocket Hits Candidate Set Flow — candidate set из Pocket Hits (каждые 30 минут)
//   - Curated Corpus Candidates Flow — candidate set из синдицированных
//     материалов (каждые 30 минут)
package flows
