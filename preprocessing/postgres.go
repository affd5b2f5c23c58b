package preprocessing

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"regexp"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// PostgresSource reads accident history from a Postgres table whose columns
// follow the accident export (latitude, longitude, data_inversa, ...).
// Coordinates may be stored as text with comma decimals.
type PostgresSource struct {
	db    *sqlx.DB
	query string
}

type accidentRow struct {
	Latitude  sql.NullString `db:"latitude"`
	Longitude sql.NullString `db:"longitude"`
	Date      sql.NullString `db:"data_inversa"`
	Time      sql.NullString `db:"horario"`
	DayOfWeek sql.NullString `db:"dia_semana"`
	Weather   sql.NullString `db:"condicao_metereologica"`
	Region    sql.NullString `db:"uf"`
	Place     sql.NullString `db:"municipio"`
	Type      sql.NullString `db:"tipo_acidente"`
}

func NewPostgresSource(ctx context.Context, dsn, table string) (*PostgresSource, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect accidents database: %w", err)
	}
	src, err := NewPostgresSourceFromDB(db, table)
	if err != nil {
		db.Close()
		return nil, err
	}
	return src, nil
}

func NewPostgresSourceFromDB(db *sqlx.DB, table string) (*PostgresSource, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid accidents table name %q", table)
	}
	return &PostgresSource{db: db, query: selectAccidents(table)}, nil
}

func selectAccidents(table string) string {
	return fmt.Sprintf(`
		SELECT
			latitude::text AS latitude,
			longitude::text AS longitude,
			data_inversa::text AS data_inversa,
			horario::text AS horario,
			dia_semana,
			condicao_metereologica,
			uf,
			municipio,
			tipo_acidente
		FROM %s`, table)
}

func (s *PostgresSource) Accidents(ctx context.Context) ([]Accident, error) {
	var rows []accidentRow
	if err := s.db.SelectContext(ctx, &rows, s.query); err != nil {
		return nil, fmt.Errorf("failed to query accidents: %w", err)
	}
	acc, skipped := rowsToAccidents(rows)
	if skipped > 0 {
		log.Printf("Skipped %d accident rows without valid coordinates", skipped)
	}
	return acc, nil
}

func (s *PostgresSource) Close() error {
	return s.db.Close()
}

func rowsToAccidents(rows []accidentRow) ([]Accident, int) {
	out := make([]Accident, 0, len(rows))
	skipped := 0
	for _, r := range rows {
		lat, errLat := ParseCoordinate(r.Latitude.String)
		lon, errLon := ParseCoordinate(r.Longitude.String)
		if !r.Latitude.Valid || !r.Longitude.Valid || errLat != nil || errLon != nil {
			skipped++
			continue
		}
		out = append(out, Accident{
			Latitude:  lat,
			Longitude: lon,
			Date:      r.Date.String,
			Time:      r.Time.String,
			DayOfWeek: r.DayOfWeek.String,
			Weather:   r.Weather.String,
			Region:    r.Region.String,
			Place:     r.Place.String,
			Type:      r.Type.String,
		})
	}
	return out, skipped
}
