// Package cli реализует инструмент командной строки Kommutator.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с Kommutator API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
// CLI используется для управления flows, операторами, очередями
// и для симуляции звонков без реального провайдера телефонии.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Kommutator API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	flows, err := client.ListFlows()
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: kommutator flow list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - flow: list, create, show, update, delete, versions, push, publish
//   - agent: list, create, show, delete, status
//   - queue: list, create, delete
//   - call: list, start, digits, hangup
//
// Команды call start / digits / hangup отправляют события телефонии
// через gateway, имитируя провайдера: удобно для ручной проверки
// графа до подключения реальной телефонии.
//
// Каждая группа создаётся через фабричную функцию (NewFlowCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
