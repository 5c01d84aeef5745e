// Package candidates собирает candidate sets из строк хранилища.
//
// Шаги одного candidate-set flow:
//   - transform.go — строки запроса → []CorpusItem (только ID и TOPIC)
//   - validate.go  — фильтрация некорректных и повторяющихся элементов
//   - record.go    — набор → запись feature store (id, unloaded_at, corpus_items)
//   - encode.go    — сериализация corpus_items в формате, совместимом с уже
//     опубликованными записями
package candidates
