package centres

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alnoor-medical/stocktrack/internal/masterdata/shared"
	"github.com/alnoor-medical/stocktrack/internal/platform/db"
)

// ErrInUse rejects deleting a centre that patient coupons still reference.
var ErrInUse = errors.New("centres: referenced by patient coupons")

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Centre, int, error)
	Get(ctx context.Context, id int64) (Centre, error)
	Create(ctx context.Context, centre Centre) (Centre, error)
	Update(ctx context.Context, id int64, centre Centre) (Centre, error)
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const centreColumns = `id, name, reference, COALESCE(address, ''), COALESCE(contact_person, ''), COALESCE(phone, ''), created_at, updated_at`

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Centre, int, error) {
	query := `SELECT ` + centreColumns + ` FROM medical_centres WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM medical_centres WHERE 1=1`
	args := []any{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		clause := ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR reference ILIKE $` + strconv.Itoa(argCount) + `)`
		query += clause
		countQuery += clause
		args = append(args, "%"+filters.Search+"%")
	}

	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)
	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)

		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		args = append(args, filters.Offset())
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var centres []Centre
	for rows.Next() {
		var c Centre
		if err := rows.Scan(&c.ID, &c.Name, &c.Reference, &c.Address, &c.ContactPerson, &c.Phone, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, err
		}
		centres = append(centres, c)
	}
	return centres, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Centre, error) {
	var c Centre
	err := r.db.QueryRow(ctx, `SELECT `+centreColumns+` FROM medical_centres WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Reference, &c.Address, &c.ContactPerson, &c.Phone, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Centre{}, shared.ErrNotFound
	}
	return c, err
}

func (r *repository) Create(ctx context.Context, centre Centre) (Centre, error) {
	err := r.db.QueryRow(ctx, `
		INSERT INTO medical_centres (name, reference, address, contact_person, phone, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NOW(), NOW())
		RETURNING `+centreColumns,
		centre.Name, centre.Reference, centre.Address, centre.ContactPerson, centre.Phone).
		Scan(&centre.ID, &centre.Name, &centre.Reference, &centre.Address, &centre.ContactPerson, &centre.Phone, &centre.CreatedAt, &centre.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return Centre{}, shared.ErrDuplicate
	}
	if err != nil {
		return Centre{}, err
	}
	return centre, nil
}

func (r *repository) Update(ctx context.Context, id int64, centre Centre) (Centre, error) {
	err := r.db.QueryRow(ctx, `
		UPDATE medical_centres
		SET name = $2, reference = $3, address = NULLIF($4, ''), contact_person = NULLIF($5, ''), phone = NULLIF($6, ''), updated_at = NOW()
		WHERE id = $1
		RETURNING `+centreColumns,
		id, centre.Name, centre.Reference, centre.Address, centre.ContactPerson, centre.Phone).
		Scan(&centre.ID, &centre.Name, &centre.Reference, &centre.Address, &centre.ContactPerson, &centre.Phone, &centre.CreatedAt, &centre.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Centre{}, shared.ErrNotFound
	}
	if db.IsUniqueViolation(err) {
		return Centre{}, shared.ErrDuplicate
	}
	if err != nil {
		return Centre{}, err
	}
	return centre, nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var inUse bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM patient_coupons WHERE medical_centre_id = $1)`, id).Scan(&inUse); err != nil {
			return err
		}
		if inUse {
			return ErrInUse
		}
		tag, err := tx.Exec(ctx, `DELETE FROM medical_centres WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == shared.SortDesc {
		dir = "DESC"
	}
	switch sortBy {
	case "name":
		return "name " + dir
	case "reference":
		return "reference " + dir
	case "created_at":
		return "created_at " + dir
	default:
		return "name " + dir
	}
}
