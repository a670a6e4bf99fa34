// Package engine содержит чистую логику workflow definitions.
//
// Включает:
//   - validate.go   — структурная и бизнес-валидация definition
//   - graph.go      — стартовые шаги, достижимость, поиск циклов
//   - conditions.go — вычисление охранных условий переходов
//   - template.go   — интерполяция {{dot.path}} по контексту instance
//
// Пакет не имеет побочных эффектов и не знает о персистентности —
// выполнение instances живёт в internal/orchestrator.
package engine
