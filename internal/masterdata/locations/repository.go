package locations

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alnoor-medical/stocktrack/internal/masterdata/shared"
	"github.com/alnoor-medical/stocktrack/internal/platform/db"
)

// ErrInUse rejects deleting a location that patient coupons still reference.
var ErrInUse = errors.New("locations: referenced by patient coupons")

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Location, int, error)
	Get(ctx context.Context, id int64) (Location, error)
	Create(ctx context.Context, location Location) (Location, error)
	Update(ctx context.Context, id int64, location Location) (Location, error)
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const locationColumns = `id, name, reference, COALESCE(address, ''), COALESCE(contact_person, ''), COALESCE(phone, ''), created_at, updated_at`

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Location, int, error) {
	query := `SELECT ` + locationColumns + ` FROM distribution_locations WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM distribution_locations WHERE 1=1`
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

	var locations []Location
	for rows.Next() {
		var l Location
		if err := rows.Scan(&l.ID, &l.Name, &l.Reference, &l.Address, &l.ContactPerson, &l.Phone, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, 0, err
		}
		locations = append(locations, l)
	}
	return locations, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Location, error) {
	var l Location
	err := r.db.QueryRow(ctx, `SELECT `+locationColumns+` FROM distribution_locations WHERE id = $1`, id).
		Scan(&l.ID, &l.Name, &l.Reference, &l.Address, &l.ContactPerson, &l.Phone, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Location{}, shared.ErrNotFound
	}
	return l, err
}

func (r *repository) Create(ctx context.Context, location Location) (Location, error) {
	err := r.db.QueryRow(ctx, `
		INSERT INTO distribution_locations (name, reference, address, contact_person, phone, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NOW(), NOW())
		RETURNING `+locationColumns,
		location.Name, location.Reference, location.Address, location.ContactPerson, location.Phone).
		Scan(&location.ID, &location.Name, &location.Reference, &location.Address, &location.ContactPerson, &location.Phone, &location.CreatedAt, &location.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return Location{}, shared.ErrDuplicate
	}
	if err != nil {
		return Location{}, err
	}
	return location, nil
}

func (r *repository) Update(ctx context.Context, id int64, location Location) (Location, error) {
	err := r.db.QueryRow(ctx, `
		UPDATE distribution_locations
		SET name = $2, reference = $3, address = NULLIF($4, ''), contact_person = NULLIF($5, ''), phone = NULLIF($6, ''), updated_at = NOW()
		WHERE id = $1
		RETURNING `+locationColumns,
		id, location.Name, location.Reference, location.Address, location.ContactPerson, location.Phone).
		Scan(&location.ID, &location.Name, &location.Reference, &location.Address, &location.ContactPerson, &location.Phone, &location.CreatedAt, &location.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Location{}, shared.ErrNotFound
	}
	if db.IsUniqueViolation(err) {
		return Location{}, shared.ErrDuplicate
	}
	if err != nil {
		return Location{}, err
	}
	return location, nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var inUse bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM patient_coupons WHERE distribution_location_id = $1)`, id).Scan(&inUse); err != nil {
			return err
		}
		if inUse {
			return ErrInUse
		}
		tag, err := tx.Exec(ctx, `DELETE FROM distribution_locations WHERE id = $1`, id)
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
