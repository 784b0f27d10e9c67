// Package dashboard отображает ход run в терминале.
//
// Renderer рисует отдельные кадры (заголовок шага, хвост журнала, артефакты,
// результаты проверок) и итоговую сводку. Model — bubbletea модель, которая
// с заданным темпом забирает снимки из ленивого потока и перерисовывает экран.
//
// Dashboard только читает Record и никогда его не изменяет.
package dashboard
