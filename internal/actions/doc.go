// Package actions выполняет побочные действия переходов и automatic шагов.
//
// Действия (notification, webhook, email, ...) независимы от управления
// потоком: упавшее действие записывается в свой слот результата и не
// останавливает ни остальные действия, ни обход переходов.
//
// Внешние системы (нотификации, почта, SMS, документы, склад) подключаются
// через реестр обработчиков — в тестах и в минимальной инсталляции вместо
// них работают логирующие заглушки.
package actions
