// Package flow содержит интерпретатор графа звонка.
//
// Включает:
//   - graph.go       — парсинг и валидация FlowGraph
//   - interpreter.go — пошаговое исполнение графа по событиям звонка
//   - hours.go       — вычисление condition-узлов (часы работы, префиксы)
//
// Интерпретатор превращает опубликованный граф узлов в поведение
// звонка: на каждое входящее событие продвигает сессию через ноль
// или более узлов и возвращает исходящие команды транспорту.
// Приостановка (ожидание цифр, ожидание оператора) — явное значение
// состояния сессии, а не заблокированная горутина.
package flow
