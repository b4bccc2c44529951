package repository

import (
	"context"
	"database/sql"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"stream-moderator/entities"
)

// StreamStore persists the registered streams in insertion order.
type StreamStore interface {
	Load(ctx context.Context) ([]entities.StreamRow, error)
	Save(ctx context.Context, rows []entities.StreamRow) error
}

type repo struct {
	db *gorm.DB
}

func NewRepo(db *sql.DB) (StreamStore, error) {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db}),
		&gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		},
	)
	if err != nil {
		return nil, err
	}
	return &repo{
		db: gormDB,
	}, nil
}

// Migrate creates or updates the streams table.
func Migrate(ctx context.Context, store StreamStore) error {
	r, ok := store.(*repo)
	if !ok {
		return nil
	}
	return r.GetDB().WithContext(ctx).AutoMigrate(&entities.StreamRow{})
}

func (r *repo) GetDB() *gorm.DB {
	return r.db
}

func (r *repo) Load(ctx context.Context) ([]entities.StreamRow, error) {
	var rows []entities.StreamRow
	err := r.GetDB().WithContext(ctx).Order("position ASC").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Save replaces the stored set with rows. The registry is the single writer
// so a full rewrite inside one transaction keeps ordering exact.
func (r *repo) Save(ctx context.Context, rows []entities.StreamRow) error {
	return r.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM streams").Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
}
