//go:generate go run go.uber.org/mock/mockgen -source=cursor.go -destination=../mocks/mock_cursor_repository.go -package=mocks
package repositories

import (
	"errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"google.golang.org/protobuf/encoding/protowire"
)

const cursorPrefix = "sync:cursor:"

// ICursorRepository remembers how far a background sync has pulled.
type ICursorRepository interface {
	GetCursor(name string) (time.Time, error)
	SetCursor(name string, at time.Time) error
}

type CursorRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewCursorRepository(db *badger.DB, log *slog.Logger) *CursorRepository {
	return &CursorRepository{db: db, log: log}
}

// GetCursor returns the zero time when the sync never ran.
func (c *CursorRepository) GetCursor(name string) (time.Time, error) {
	var at time.Time
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(cursorPrefix + name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			if n := consumeTime(value, &at); n < 0 {
				return protowire.ParseError(n)
			}
			return nil
		})
	})
	return at, err
}

// SetCursor never moves a cursor backwards.
func (c *CursorRepository) SetCursor(name string, at time.Time) error {
	key := []byte(cursorPrefix + name)
	return c.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		switch {
		case err == nil:
			var current time.Time
			err = item.Value(func(value []byte) error {
				if n := consumeTime(value, &current); n < 0 {
					return protowire.ParseError(n)
				}
				return nil
			})
			if err != nil {
				return err
			}
			if !at.After(current) {
				c.log.Debug("Cursor not moved", "name", name, "current", current, "requested", at)
				return nil
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		return txn.Set(key, protowire.AppendVarint(nil, uint64(at.UnixNano())))
	})
}
