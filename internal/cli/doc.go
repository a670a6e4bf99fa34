// Package cli реализует инструмент командной строки Caseflow.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с Caseflow API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
// CLI используется для управления definitions, instances и schedules.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Caseflow API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок, включая списки нарушений валидации.
//
//	client := cli.NewClient("http://localhost:8080")
//	defs, err := client.ListDefinitions(cli.ListDefinitionsOpts{})
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: caseflow definition list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - definition: list, create, validate, show, activate, archive, versions
//   - instance: list, start, show, execute, suspend, resume, cancel, events
//   - schedule: list, create, show, update, delete, enable, disable
//
// Каждая группа создаётся через фабричную функцию (NewDefinitionCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
