// Package warehouse выполняет параметризованные запросы к аналитическому хранилищу.
//
// Включает:
//   - query.go     — Query, Row, интерфейс Querier
//   - bind.go      — подстановка именованных параметров (:name → ?)
//   - snowflake.go — реализация Querier поверх database/sql и gosnowflake
package warehouse
