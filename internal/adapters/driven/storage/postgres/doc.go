// Package postgres provides a PostgreSQL document store built on gorm.
//
// It serves the same ports as the SQLite store and is selected with
// store.driver = "postgres". Tables are created with gorm AutoMigrate on
// connect. A missing users table reads as an empty baseline.
package postgres
