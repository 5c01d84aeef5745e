// Package client — HTTP-клиент для API dataflows.
//
// Client используется в двух местах:
//   - CLI (`dataflows run list`, `dataflows flow list` и т.д.);
//   - flows.Trigger: DBT Orchestration Flow запускает под-flows через
//     POST /api/v1/flows/{name}/runs и ждёт их, опрашивая GET /api/v1/runs/{id}.
//
// Ответы API декодируются прямо в типы domain: JSON-теги DTO и domain совпадают.
package client
