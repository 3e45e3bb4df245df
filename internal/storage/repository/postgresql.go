// Package repository реализует хранилище данных на основе PostgreSQL
// для коворкинг-леджера. Предоставляет операции над пользователями,
// сессиями занятости и расчётными транзакциями, а также маппинг ошибок
// базы на доменные ошибки конфликтов и отсутствия записей.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Доменные ошибки хранилища. Сервисный слой проверяет их через errors.Is.
var (
	// ErrNotFound запись не найдена: пользователь или сессия исчезли.
	ErrNotFound = errors.New("not found")
	// ErrConflict нарушено предусловие об открытой сессии: у пользователя
	// уже есть открытая сессия либо сессия уже закрыта конкурентом.
	ErrConflict = errors.New("conflict")
	// ErrUnavailable хранилище недоступно, операцию можно повторить.
	ErrUnavailable = errors.New("storage unavailable")
)

// Storage инкапсулирует соединение с базой данных PostgreSQL.
type Storage struct {
	DB *sql.DB
}

// New создаёт подключение к PostgreSQL.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{
		DB: db,
	}, nil
}

// CheckDatabaseReady проверяет готовность базы данных.
func CheckDatabaseReady(storage *Storage) error {
	var exists bool
	err := storage.DB.QueryRow(`SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'sessions'
    )`).Scan(&exists)
	if err != nil || !exists {
		return fmt.Errorf("required table sessions missing or query error: %w", err)
	}
	return nil
}

// isUniqueViolation распознаёт нарушение уникального ограничения
// (код 23505) — так база выступает арбитром гонки двух start.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
