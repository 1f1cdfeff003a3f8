package repo

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Customers provides customer directory persistence.
type Customers struct {
	DB DBTX
}

const customerColumns = `id, name, email, phone, loyalty_points, total_spent, joined_at, last_visit`

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.LoyaltyPoints, &c.TotalSpent, &c.JoinedAt, &c.LastVisit)
	return c, err
}

// Get returns one customer by id.
func (r Customers) Get(ctx context.Context, id pgtype.UUID) (Customer, error) {
	return scanCustomer(r.DB.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
}

// Search returns customers matching a name, email, or phone fragment.
func (r Customers) Search(ctx context.Context, query string, limit, offset int32) ([]Customer, error) {
	q := strings.TrimSpace(query)
	rows, err := r.DB.Query(ctx, `
		SELECT `+customerColumns+` FROM customers
		WHERE $1 = '' OR name ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%' OR phone LIKE '%' || $1 || '%'
		ORDER BY name
		LIMIT $2 OFFSET $3`, q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Create inserts a new customer.
func (r Customers) Create(ctx context.Context, c Customer) (Customer, error) {
	row := r.DB.QueryRow(ctx, `
		INSERT INTO customers (name, email, phone) VALUES ($1, $2, $3)
		RETURNING `+customerColumns, c.Name, c.Email, c.Phone)
	return scanCustomer(row)
}

// Update replaces contact details.
func (r Customers) Update(ctx context.Context, c Customer) (Customer, error) {
	row := r.DB.QueryRow(ctx, `
		UPDATE customers SET name = $2, email = $3, phone = $4 WHERE id = $1
		RETURNING `+customerColumns, c.ID, c.Name, c.Email, c.Phone)
	return scanCustomer(row)
}

// AccrueLoyalty credits points and spend and stamps the visit in one write.
func (r Customers) AccrueLoyalty(ctx context.Context, id pgtype.UUID, points, spent int64, visit pgtype.Timestamptz) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE customers
		SET loyalty_points = loyalty_points + $2, total_spent = total_spent + $3, last_visit = $4
		WHERE id = $1`, id, points, spent, visit)
	return err
}
