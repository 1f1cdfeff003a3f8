package customer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-pos/internal/repo"
)

// ErrNotFound indicates no customer matched.
var ErrNotFound = errors.New("customer not found")

// Store captures the directory persistence methods.
type Store interface {
	Get(ctx context.Context, id pgtype.UUID) (repo.Customer, error)
	Search(ctx context.Context, query string, limit, offset int32) ([]repo.Customer, error)
	Create(ctx context.Context, c repo.Customer) (repo.Customer, error)
	Update(ctx context.Context, c repo.Customer) (repo.Customer, error)
}

// Service manages the customer directory. Loyalty balances only change
// through checkout; this service never writes them.
type Service struct {
	Store Store
}

// Customer is the directory payload.
type Customer struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email,omitempty"`
	Phone         string     `json:"phone,omitempty"`
	LoyaltyPoints int64      `json:"loyaltyPoints"`
	TotalSpent    int64      `json:"totalSpent"`
	JoinedAt      time.Time  `json:"joinedAt"`
	LastVisit     *time.Time `json:"lastVisit,omitempty"`
}

func toCustomer(c repo.Customer) Customer {
	out := Customer{
		ID:            repo.UUIDString(c.ID),
		Name:          c.Name,
		Email:         c.Email,
		Phone:         c.Phone,
		LoyaltyPoints: c.LoyaltyPoints,
		TotalSpent:    c.TotalSpent,
		JoinedAt:      c.JoinedAt.Time,
	}
	if c.LastVisit.Valid {
		visit := c.LastVisit.Time
		out.LastVisit = &visit
	}
	return out
}

// Input carries the editable contact fields.
type Input struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone"`
}

// Search returns customers matching a name, email, or phone fragment.
func (s *Service) Search(ctx context.Context, query string, limit, offset int32) ([]Customer, error) {
	if s == nil || s.Store == nil {
		return nil, errors.New("customer service not configured")
	}
	customers, err := s.Store.Search(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]Customer, 0, len(customers))
	for _, c := range customers {
		out = append(out, toCustomer(c))
	}
	return out, nil
}

// Get returns one customer by id.
func (s *Service) Get(ctx context.Context, id string) (Customer, error) {
	if s == nil || s.Store == nil {
		return Customer{}, errors.New("customer service not configured")
	}
	cID, err := repo.ToUUID(id)
	if err != nil {
		return Customer{}, fmt.Errorf("parse customer id: %w", err)
	}
	c, err := s.Store.Get(ctx, cID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, ErrNotFound
		}
		return Customer{}, err
	}
	return toCustomer(c), nil
}

// Create registers a new customer.
func (s *Service) Create(ctx context.Context, in Input) (Customer, error) {
	if s == nil || s.Store == nil {
		return Customer{}, errors.New("customer service not configured")
	}
	c, err := s.Store.Create(ctx, repo.Customer{
		Name:  strings.TrimSpace(in.Name),
		Email: strings.ToLower(strings.TrimSpace(in.Email)),
		Phone: strings.TrimSpace(in.Phone),
	})
	if err != nil {
		return Customer{}, err
	}
	return toCustomer(c), nil
}

// Update replaces contact details. Loyalty fields are untouched.
func (s *Service) Update(ctx context.Context, id string, in Input) (Customer, error) {
	if s == nil || s.Store == nil {
		return Customer{}, errors.New("customer service not configured")
	}
	cID, err := repo.ToUUID(id)
	if err != nil {
		return Customer{}, fmt.Errorf("parse customer id: %w", err)
	}
	existing, err := s.Store.Get(ctx, cID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, ErrNotFound
		}
		return Customer{}, err
	}
	existing.Name = strings.TrimSpace(in.Name)
	existing.Email = strings.ToLower(strings.TrimSpace(in.Email))
	existing.Phone = strings.TrimSpace(in.Phone)
	updated, err := s.Store.Update(ctx, existing)
	if err != nil {
		return Customer{}, err
	}
	return toCustomer(updated), nil
}
