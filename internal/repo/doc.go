// Package repo хранит runs и их снимки в PostgreSQL через pgx.
//
// Схема описана в migrations/0001_init.sql. Record хранится как JSONB,
// поэтому числовые поля после чтения приходят как float64; Record.Int
// это учитывает.
package repo
