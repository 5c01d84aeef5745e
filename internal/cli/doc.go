// Package cli реализует инструмент командной строки dataflows.
//
// # Обзор
//
// CLI работает с API сервиса dataflows-scheduler через client.Client.
// Исключение — `flow exec`: flow выполняется прямо в процессе CLI,
// с подключением к Snowflake и feature store из переменных окружения.
//
// # Ключевые компоненты
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: dataflows run list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - flow: list, show, exec
//   - run: list, start, show, tasks, enqueue
//   - schedule: list
//
// Каждая группа создаётся через фабричную функцию (NewFlowCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// client.Client и Output после парсинга PersistentFlags.
package cli
