package implementation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	irgmodels "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Models"
	interfaces "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Repository/Interfaces"
)

const readingColumns = `id_coleta, sensor, valor_coleta, data_hora_coleta, status_rele, motivo_acionamento`

// PostgresReadingRepository stores readings in the dados_irrigacao table
type PostgresReadingRepository struct {
	db *sql.DB
}

func NewPostgresReadingRepository(db *sql.DB) *PostgresReadingRepository {
	return &PostgresReadingRepository{db: db}
}

func (r *PostgresReadingRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *PostgresReadingRepository) CreateReading(ctx context.Context, reading *irgmodels.Reading) error {
	if reading.ID == 0 {
		query := `
			INSERT INTO dados_irrigacao (sensor, valor_coleta, data_hora_coleta, status_rele, motivo_acionamento)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id_coleta
		`
		err := r.db.QueryRowContext(ctx, query,
			reading.SensorName, reading.Value, reading.CollectedAt, nullableStatus(reading.RelayStatus), nullableReason(reading.TriggerReason),
		).Scan(&reading.ID)
		return mapPgError(err)
	}

	query := `
		INSERT INTO dados_irrigacao (` + readingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		reading.ID, reading.SensorName, reading.Value, reading.CollectedAt, nullableStatus(reading.RelayStatus), nullableReason(reading.TriggerReason),
	)
	if err != nil {
		return mapPgError(err)
	}
	return syncSequence(ctx, r.db)
}

// CreateReadings bulk inserts in a single transaction. Readings carrying an id
// are copied first and the sequence is moved past them, so the ids generated
// for the rest of the batch cannot collide with them.
func (r *PostgresReadingRepository) CreateReadings(ctx context.Context, readings []irgmodels.Reading) (int, error) {
	if len(readings) == 0 {
		return 0, nil
	}

	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer txn.Rollback()

	explicit, generated := splitByID(readings)
	if len(explicit) > 0 {
		if err := copyReadings(ctx, txn, explicit); err != nil {
			return 0, mapPgError(err)
		}
		if err := syncSequence(ctx, txn); err != nil {
			return 0, err
		}
	}
	if len(generated) > 0 {
		if err := insertReadings(ctx, txn, generated); err != nil {
			return 0, mapPgError(err)
		}
	}

	if err := txn.Commit(); err != nil {
		return 0, mapPgError(err)
	}
	return len(readings), nil
}

// splitByID partitions readings into those with an explicit id and those
// relying on the sequence, keeping input order within each group.
func splitByID(readings []irgmodels.Reading) (explicit, generated []irgmodels.Reading) {
	for _, rd := range readings {
		if rd.ID != 0 {
			explicit = append(explicit, rd)
		} else {
			generated = append(generated, rd)
		}
	}
	return explicit, generated
}

func copyReadings(ctx context.Context, txn *sql.Tx, readings []irgmodels.Reading) error {
	stmt, err := txn.PrepareContext(ctx, pq.CopyIn("dados_irrigacao",
		"id_coleta", "sensor", "valor_coleta", "data_hora_coleta", "status_rele", "motivo_acionamento"))
	if err != nil {
		return err
	}

	for _, rd := range readings {
		_, err = stmt.ExecContext(ctx, rd.ID, rd.SensorName, rd.Value, rd.CollectedAt, nullableStatus(rd.RelayStatus), nullableReason(rd.TriggerReason))
		if err != nil {
			stmt.Close()
			return err
		}
	}

	if _, err = stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return err
	}
	return stmt.Close()
}

// insertReadings inserts readings without an id through a prepared statement
func insertReadings(ctx context.Context, txn *sql.Tx, readings []irgmodels.Reading) error {
	stmt, err := txn.PrepareContext(ctx, `
		INSERT INTO dados_irrigacao (sensor, valor_coleta, data_hora_coleta, status_rele, motivo_acionamento)
		VALUES ($1, $2, $3, $4, $5)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rd := range readings {
		_, err = stmt.ExecContext(ctx, rd.SensorName, rd.Value, rd.CollectedAt, nullableStatus(rd.RelayStatus), nullableReason(rd.TriggerReason))
		if err != nil {
			return err
		}
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// syncSequence moves the serial sequence past explicitly inserted ids
func syncSequence(ctx context.Context, db execer) error {
	_, err := db.ExecContext(ctx, `
		SELECT setval(pg_get_serial_sequence('dados_irrigacao', 'id_coleta'),
			(SELECT COALESCE(MAX(id_coleta), 0) + 1 FROM dados_irrigacao), false)
	`)
	if err != nil {
		return fmt.Errorf("failed to sync id sequence: %w", err)
	}
	return nil
}

func (r *PostgresReadingRepository) GetReading(ctx context.Context, id int64) (*irgmodels.Reading, error) {
	query := `SELECT ` + readingColumns + ` FROM dados_irrigacao WHERE id_coleta = $1`

	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	readings, err := scanReadings(rows)
	if err != nil {
		return nil, err
	}
	if len(readings) == 0 {
		return nil, interfaces.ErrReadingNotFound
	}
	return &readings[0], nil
}

func (r *PostgresReadingRepository) ListReadings(ctx context.Context, params interfaces.ReadingQueryParams) (*interfaces.ReadingQueryResult, error) {
	params = params.Normalize()

	var (
		conds []string
		args  []interface{}
	)
	if params.Sensor != "" {
		args = append(args, params.Sensor)
		conds = append(conds, fmt.Sprintf("sensor = $%d", len(args)))
	}
	if params.From != nil {
		args = append(args, *params.From)
		conds = append(conds, fmt.Sprintf("data_hora_coleta >= $%d", len(args)))
	}
	if params.To != nil {
		args = append(args, *params.To)
		conds = append(conds, fmt.Sprintf("data_hora_coleta <= $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dados_irrigacao`+where, args...).Scan(&total); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM dados_irrigacao%s ORDER BY data_hora_coleta DESC, id_coleta DESC LIMIT $%d OFFSET $%d`,
		readingColumns, where, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, query, append(args, params.Limit, params.Offset())...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanReadings(rows)
	if err != nil {
		return nil, err
	}
	return interfaces.NewReadingQueryResult(items, params, total), nil
}

func (r *PostgresReadingRepository) AllReadings(ctx context.Context) ([]irgmodels.Reading, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+readingColumns+` FROM dados_irrigacao ORDER BY data_hora_coleta, id_coleta`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanReadings(rows)
}

func (r *PostgresReadingRepository) UpdateReadingValue(ctx context.Context, id int64, value float64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE dados_irrigacao SET valor_coleta = $1 WHERE id_coleta = $2`, value, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (r *PostgresReadingRepository) DeleteReading(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM dados_irrigacao WHERE id_coleta = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func scanReadings(rows *sql.Rows) ([]irgmodels.Reading, error) {
	readings := make([]irgmodels.Reading, 0)

	for rows.Next() {
		var (
			reading irgmodels.Reading
			status  sql.NullInt64
			reason  sql.NullString
		)
		if err := rows.Scan(&reading.ID, &reading.SensorName, &reading.Value, &reading.CollectedAt, &status, &reason); err != nil {
			return nil, err
		}
		if status.Valid {
			reading.RelayStatus = irgmodels.IntPtr(int(status.Int64))
		}
		reading.TriggerReason = reason.String
		readings = append(readings, reading)
	}

	return readings, rows.Err()
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return interfaces.ErrReadingNotFound
	}
	return nil
}

func nullableStatus(status *int) interface{} {
	if status == nil {
		return nil
	}
	return int64(*status)
}

func nullableReason(reason string) interface{} {
	if reason == "" {
		return nil
	}
	return reason
}

// mapPgError turns unique violations into ErrReadingExists
func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%w: %s", interfaces.ErrReadingExists, pqErr.Detail)
	}
	return err
}
