package implementation

import (
	"context"
	"errors"
	"fmt"

	irgmodels "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Models"
	interfaces "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Repository/Interfaces"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLiteReadingRepository stores readings in a local SQLite file through GORM.
// Timestamps are written in UTC so that text comparisons order correctly.
type SQLiteReadingRepository struct {
	orm *gorm.DB
}

// OpenSQLite opens the database file and migrates the dados_irrigacao table
func OpenSQLite(path string) (*gorm.DB, error) {
	g, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := g.AutoMigrate(&irgmodels.Reading{}); err != nil {
		_ = CloseSQLite(g)
		return nil, fmt.Errorf("failed to migrate sqlite database: %w", err)
	}
	return g, nil
}

// CloseSQLite closes the connection behind a GORM handle
func CloseSQLite(g *gorm.DB) error {
	sqlDB, err := g.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func NewSQLiteReadingRepository(orm *gorm.DB) *SQLiteReadingRepository {
	return &SQLiteReadingRepository{orm: orm}
}

func (r *SQLiteReadingRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.orm.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *SQLiteReadingRepository) CreateReading(ctx context.Context, reading *irgmodels.Reading) error {
	row := *reading
	row.CollectedAt = row.CollectedAt.UTC()

	err := r.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkFree(tx, []irgmodels.Reading{row}); err != nil {
			return err
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return mapGormError(err)
	}
	reading.ID = row.ID
	return nil
}

func (r *SQLiteReadingRepository) CreateReadings(ctx context.Context, readings []irgmodels.Reading) (int, error) {
	if len(readings) == 0 {
		return 0, nil
	}
	rows := make([]irgmodels.Reading, len(readings))
	for i, rd := range readings {
		rd.CollectedAt = rd.CollectedAt.UTC()
		rows[i] = rd
	}

	err := r.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkFree(tx, rows); err != nil {
			return err
		}
		// one statement per row keeps generated and explicit ids apart
		for i := range rows {
			if err := tx.Create(&rows[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, mapGormError(err)
	}
	return len(rows), nil
}

// checkFree rejects explicit ids that are repeated or already stored
func checkFree(tx *gorm.DB, rows []irgmodels.Reading) error {
	ids := make([]int64, 0, len(rows))
	seen := make(map[int64]bool, len(rows))
	for _, rd := range rows {
		if rd.ID == 0 {
			continue
		}
		if seen[rd.ID] {
			return fmt.Errorf("%w: id_coleta %d repeated in batch", interfaces.ErrReadingExists, rd.ID)
		}
		seen[rd.ID] = true
		ids = append(ids, rd.ID)
	}
	if len(ids) == 0 {
		return nil
	}

	var taken []int64
	if err := tx.Model(&irgmodels.Reading{}).Where("id_coleta IN ?", ids).Limit(1).Pluck("id_coleta", &taken).Error; err != nil {
		return err
	}
	if len(taken) > 0 {
		return fmt.Errorf("%w: id_coleta %d", interfaces.ErrReadingExists, taken[0])
	}
	return nil
}

func (r *SQLiteReadingRepository) GetReading(ctx context.Context, id int64) (*irgmodels.Reading, error) {
	var reading irgmodels.Reading
	err := r.orm.WithContext(ctx).Where("id_coleta = ?", id).Take(&reading).Error
	if err != nil {
		return nil, mapGormError(err)
	}
	return &reading, nil
}

func (r *SQLiteReadingRepository) ListReadings(ctx context.Context, params interfaces.ReadingQueryParams) (*interfaces.ReadingQueryResult, error) {
	params = params.Normalize()

	q := r.orm.WithContext(ctx).Model(&irgmodels.Reading{})
	if params.Sensor != "" {
		q = q.Where("sensor = ?", params.Sensor)
	}
	if params.From != nil {
		q = q.Where("data_hora_coleta >= ?", params.From.UTC())
	}
	if params.To != nil {
		q = q.Where("data_hora_coleta <= ?", params.To.UTC())
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}

	var items []irgmodels.Reading
	err := q.Order("data_hora_coleta DESC, id_coleta DESC").
		Limit(params.Limit).
		Offset(params.Offset()).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return interfaces.NewReadingQueryResult(items, params, total), nil
}

func (r *SQLiteReadingRepository) AllReadings(ctx context.Context) ([]irgmodels.Reading, error) {
	readings := make([]irgmodels.Reading, 0)
	if err := r.orm.WithContext(ctx).Order("data_hora_coleta, id_coleta").Find(&readings).Error; err != nil {
		return nil, err
	}
	return readings, nil
}

func (r *SQLiteReadingRepository) UpdateReadingValue(ctx context.Context, id int64, value float64) error {
	res := r.orm.WithContext(ctx).Model(&irgmodels.Reading{}).Where("id_coleta = ?", id).Update("valor_coleta", value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return interfaces.ErrReadingNotFound
	}
	return nil
}

func (r *SQLiteReadingRepository) DeleteReading(ctx context.Context, id int64) error {
	res := r.orm.WithContext(ctx).Where("id_coleta = ?", id).Delete(&irgmodels.Reading{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return interfaces.ErrReadingNotFound
	}
	return nil
}

func mapGormError(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return interfaces.ErrReadingNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return interfaces.ErrReadingExists
	}
	return err
}
