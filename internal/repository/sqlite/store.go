package sqlite

import (
	"database/sql"

	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/repository"
)

// Store wires SQLite-backed repository implementations.
type Store struct {
	db         *sql.DB
	orders     repository.OrderRepository
	candidates repository.RemediationCandidateRepository
}

// NewStore constructs a SQLite-backed repository store.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:         db,
		orders:     &orderRepo{db: db},
		candidates: &remediationRepo{db: db},
	}
}

func (s *Store) Orders() repository.OrderRepository {
	return s.orders
}

func (s *Store) RemediationCandidates() repository.RemediationCandidateRepository {
	return s.candidates
}
