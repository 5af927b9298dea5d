package patient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayurclinic/clinic/internal/domain/dietplan"
	"github.com/ayurclinic/clinic/internal/platform/db"
)

type patientRepoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) db.Querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const patientCols = `id, name, age, gender, dominant_prakriti, dosha, lifestyle, existing_disease,
	bp, weight, agni, login_id, password_hash, added_by, chart_version, created_at, updated_at, last_login`

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient (
			id, name, age, gender, dominant_prakriti, dosha, lifestyle, existing_disease,
			bp, weight, agni, login_id, password_hash, added_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING created_at, updated_at`,
		p.ID, p.Name, p.Age, p.Gender, p.DominantPrakriti, p.Dosha, p.Lifestyle, p.ExistingDisease,
		p.BP, p.Weight, p.Agni, p.LoginID, p.PasswordHash, p.AddedBy,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateLoginID
	}
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	if p.DietCharts == nil {
		p.DietCharts = []dietplan.Chart{}
	}
	return nil
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.getWithCharts(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id)
}

func (r *patientRepoPG) GetByLoginID(ctx context.Context, loginID string) (*Patient, error) {
	return r.getWithCharts(ctx, `SELECT `+patientCols+` FROM patient WHERE login_id = $1`, loginID)
}

func (r *patientRepoPG) getWithCharts(ctx context.Context, query string, arg interface{}) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, query, arg))
	if err != nil {
		return nil, err
	}
	charts, err := r.loadCharts(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.DietCharts = charts
	return p, nil
}

func (r *patientRepoPG) LoginIDExists(ctx context.Context, loginID string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM patient WHERE login_id = $1)`, loginID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check login id: %w", err)
	}
	return exists, nil
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patient SET
			name=$2, age=$3, gender=$4, dominant_prakriti=$5, dosha=$6, lifestyle=$7,
			existing_disease=$8, bp=$9, weight=$10, agni=$11, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.Name, p.Age, p.Gender, p.DominantPrakriti, p.Dosha, p.Lifestyle,
		p.ExistingDisease, p.BP, p.Weight, p.Agni,
	).Scan(&p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update patient: %w", err)
	}
	return nil
}

func (r *patientRepoPG) SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	return r.execOne(ctx, `UPDATE patient SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
}

func (r *patientRepoPG) SetLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.execOne(ctx, `UPDATE patient SET last_login = $2 WHERE id = $1`, id, at)
}

// Delete relies on ON DELETE CASCADE to drop the diet_chart rows in the
// same statement.
func (r *patientRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	return r.execOne(ctx, `DELETE FROM patient WHERE id = $1`, id)
}

func (r *patientRepoPG) execOne(ctx context.Context, sql string, args ...interface{}) error {
	tag, err := r.conn(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("patient write: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *patientRepoPG) ListByOwner(ctx context.Context, addedBy string, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM patient WHERE ($1 = '' OR added_by = $1)`, addedBy,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+patientCols+`,
			(SELECT COUNT(*) FROM diet_chart dc WHERE dc.patient_id = patient.id)
		FROM patient
		WHERE ($1 = '' OR added_by = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, addedBy, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	var items []*Patient
	for rows.Next() {
		var chartCount int
		p, err := scanPatientRow(rows, &chartCount)
		if err != nil {
			return nil, 0, err
		}
		p.ChartCount = chartCount
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate patients: %w", err)
	}
	return items, total, nil
}

// -- Diet chart history --

func (r *patientRepoPG) Charts(ctx context.Context, id uuid.UUID) ([]dietplan.Chart, int64, error) {
	var version int64
	err := r.conn(ctx).QueryRow(ctx, `SELECT chart_version FROM patient WHERE id = $1`, id).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read chart version: %w", err)
	}
	charts, err := r.loadCharts(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	return charts, version, nil
}

func (r *patientRepoPG) loadCharts(ctx context.Context, id uuid.UUID) ([]dietplan.Chart, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT generated_at, diet, notes FROM diet_chart
		WHERE patient_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("query diet charts: %w", err)
	}
	defer rows.Close()

	charts := []dietplan.Chart{}
	for rows.Next() {
		var c dietplan.Chart
		var raw []byte
		if err := rows.Scan(&c.Date, &raw, &c.Notes); err != nil {
			return nil, fmt.Errorf("scan diet chart: %w", err)
		}
		if err := json.Unmarshal(raw, &c.Diet); err != nil {
			return nil, fmt.Errorf("decode diet plan: %w", err)
		}
		c.Diet = c.Diet.Normalize()
		charts = append(charts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate diet charts: %w", err)
	}
	return charts, nil
}

// SaveCharts bumps chart_version with a compare-and-set and rewrites the
// position-ordered rows in the same transaction.
func (r *patientRepoPG) SaveCharts(ctx context.Context, id uuid.UUID, charts []dietplan.Chart, expectedVersion int64) (int64, error) {
	var next int64
	err := db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		q := r.conn(ctx)
		err := q.QueryRow(ctx, `
			UPDATE patient SET chart_version = chart_version + 1, updated_at = NOW()
			WHERE id = $1 AND chart_version = $2
			RETURNING chart_version`, id, expectedVersion).Scan(&next)
		if errors.Is(err, pgx.ErrNoRows) {
			var exists bool
			if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM patient WHERE id = $1)`, id).Scan(&exists); err != nil {
				return fmt.Errorf("check patient: %w", err)
			}
			if !exists {
				return ErrNotFound
			}
			return ErrConcurrentModification
		}
		if err != nil {
			return fmt.Errorf("bump chart version: %w", err)
		}

		if _, err := q.Exec(ctx, `DELETE FROM diet_chart WHERE patient_id = $1`, id); err != nil {
			return fmt.Errorf("clear diet charts: %w", err)
		}
		for i, c := range charts {
			raw, err := json.Marshal(c.Diet.Normalize())
			if err != nil {
				return fmt.Errorf("encode diet plan: %w", err)
			}
			if _, err := q.Exec(ctx, `
				INSERT INTO diet_chart (patient_id, position, generated_at, diet, notes)
				VALUES ($1, $2, $3, $4, $5)`, id, i, c.Date, raw, c.Notes); err != nil {
				return fmt.Errorf("insert diet chart %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

// -- Scanning --

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPatient(row pgx.Row) (*Patient, error) {
	p, err := scanPatientRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func scanPatientRow(row rowScanner, extra ...interface{}) (*Patient, error) {
	var p Patient
	dest := []interface{}{
		&p.ID, &p.Name, &p.Age, &p.Gender, &p.DominantPrakriti, &p.Dosha, &p.Lifestyle, &p.ExistingDisease,
		&p.BP, &p.Weight, &p.Agni, &p.LoginID, &p.PasswordHash, &p.AddedBy, &p.ChartVersion,
		&p.CreatedAt, &p.UpdatedAt, &p.LastLogin,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan patient: %w", err)
	}
	return &p, nil
}
