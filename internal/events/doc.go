// Package events реализует журнал событий workflow.
//
// Журнал append-only: движок пишет событие на каждое изменение состояния
// instance или шага. Запись fire-and-forget — отказ хранилища или брокера
// логируется, но никогда не влияет на выполнение workflow.
package events
