package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/annel0/voxelcore/internal/vec"
	_ "github.com/go-sql-driver/mysql"
)

const upsertAnchorQuery = `
	INSERT INTO loader_anchors (anchor_id, x, y, z)
	VALUES (?, ?, ?, ?)
	ON DUPLICATE KEY UPDATE
		x = VALUES(x),
		y = VALUES(y),
		z = VALUES(z),
		updated_at = CURRENT_TIMESTAMP
`

// MariaAnchorRepo реализует AnchorRepo для MariaDB/MySQL (таблица loader_anchors)
type MariaAnchorRepo struct {
	db *sql.DB
}

// NewMariaAnchorRepo подключается к базе и создаёт таблицу при необходимости.
// dsn: user:pass@tcp(host:port)/dbname
func NewMariaAnchorRepo(dsn string) (*MariaAnchorRepo, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к MariaDB: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось проверить соединение с MariaDB: %w", err)
	}

	repo := &MariaAnchorRepo{db: db}
	if err := repo.createTable(); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *MariaAnchorRepo) createTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS loader_anchors (
			anchor_id  VARCHAR(64) PRIMARY KEY,
			x          INT         NOT NULL,
			y          INT         NOT NULL,
			z          INT         NOT NULL,
			updated_at TIMESTAMP   DEFAULT CURRENT_TIMESTAMP
			           ON UPDATE   CURRENT_TIMESTAMP
		) ENGINE=InnoDB
	`
	if _, err := r.db.Exec(query); err != nil {
		return fmt.Errorf("ошибка создания таблицы loader_anchors: %w", err)
	}
	return nil
}

func (r *MariaAnchorRepo) Save(ctx context.Context, id string, pos vec.Vec3) error {
	if err := validateAnchorID(id); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, upsertAnchorQuery, id, pos.X, pos.Y, pos.Z); err != nil {
		return fmt.Errorf("ошибка сохранения якоря %s: %w", id, err)
	}
	return nil
}

func (r *MariaAnchorRepo) Load(ctx context.Context, id string) (vec.Vec3, bool, error) {
	if err := validateAnchorID(id); err != nil {
		return vec.Vec3{}, false, err
	}

	var pos vec.Vec3
	err := r.db.QueryRowContext(ctx, `SELECT x, y, z FROM loader_anchors WHERE anchor_id = ?`, id).
		Scan(&pos.X, &pos.Y, &pos.Z)
	if errors.Is(err, sql.ErrNoRows) {
		return vec.Vec3{}, false, nil
	}
	if err != nil {
		return vec.Vec3{}, false, fmt.Errorf("ошибка загрузки якоря %s: %w", id, err)
	}
	return pos, true, nil
}

func (r *MariaAnchorRepo) Delete(ctx context.Context, id string) error {
	if err := validateAnchorID(id); err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM loader_anchors WHERE anchor_id = ?`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления якоря %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения количества затронутых строк: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrAnchorNotFound, id)
	}
	return nil
}

// BatchSave сохраняет якоря в одной транзакции
func (r *MariaAnchorRepo) BatchSave(ctx context.Context, anchors map[string]vec.Vec3) error {
	if len(anchors) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertAnchorQuery)
	if err != nil {
		return fmt.Errorf("ошибка подготовки запроса: %w", err)
	}
	defer stmt.Close()

	for id, pos := range anchors {
		if err := validateAnchorID(id); err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, id, pos.X, pos.Y, pos.Z); err != nil {
			return fmt.Errorf("ошибка сохранения якоря %s в batch: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return nil
}

func (r *MariaAnchorRepo) All(ctx context.Context) (map[string]vec.Vec3, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT anchor_id, x, y, z FROM loader_anchors`)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения якорей: %w", err)
	}
	defer rows.Close()

	out := make(map[string]vec.Vec3)
	for rows.Next() {
		var id string
		var pos vec.Vec3
		if err := rows.Scan(&id, &pos.X, &pos.Y, &pos.Z); err != nil {
			return nil, err
		}
		out[id] = pos
	}
	return out, rows.Err()
}

// Close закрывает соединение с базой данных
func (r *MariaAnchorRepo) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
