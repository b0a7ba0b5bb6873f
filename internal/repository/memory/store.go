// Package memory implements repository.Store in process memory for local runs and tests.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/google/uuid"

	"github.com/rpattn/leadstream/internal/domain"
	"github.com/rpattn/leadstream/internal/repository"
)

type state struct {
	uploads    map[int64]domain.Upload
	persons    map[int64]domain.Person
	audits     map[uuid.UUID]domain.EnrichmentAudit
	results    map[int64]domain.EnrichmentResult
	users      map[int64]domain.User
	companies  map[int64]domain.Company
	businesses map[int64]domain.Business
	logs       []domain.IngestionLogEntry

	nextUpload  int64
	nextPerson  int64
	nextAudit   int64
	nextResult  int64
	nextLog     int64
	nextCompany int64
}

func newState() *state {
	return &state{
		uploads:    map[int64]domain.Upload{},
		persons:    map[int64]domain.Person{},
		audits:     map[uuid.UUID]domain.EnrichmentAudit{},
		results:    map[int64]domain.EnrichmentResult{},
		users:      map[int64]domain.User{},
		companies:  map[int64]domain.Company{},
		businesses: map[int64]domain.Business{},
	}
}

func (s *state) clone() *state {
	c := *s
	c.uploads = maps.Clone(s.uploads)
	c.persons = maps.Clone(s.persons)
	c.audits = maps.Clone(s.audits)
	c.results = maps.Clone(s.results)
	c.users = maps.Clone(s.users)
	c.companies = maps.Clone(s.companies)
	c.businesses = maps.Clone(s.businesses)
	c.logs = append([]domain.IngestionLogEntry(nil), s.logs...)
	return &c
}

// Store is a mutex guarded repository.Store. Transactions run serially against a
// copy of the state that replaces the original on commit.
type Store struct {
	mu sync.Mutex
	st *state
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{st: newState()}
}

var _ repository.Store = (*Store)(nil)

// view binds repositories to either the live state or a transaction copy.
type view struct {
	root *Store
	tx   *state
}

func (v *view) do(fn func(st *state) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	v.root.mu.Lock()
	defer v.root.mu.Unlock()
	return fn(v.root.st)
}

func (v *view) Uploads() repository.UploadRepository { return &uploadRepository{v: v} }
func (v *view) Persons() repository.PersonRepository { return &personRepository{v: v} }
func (v *view) Enrichments() repository.EnrichmentRepository { return &enrichmentRepository{v: v} }
func (v *view) Ownership() repository.OwnershipRepository { return &ownershipRepository{v: v} }
func (v *view) IngestionLogs() repository.IngestionLogRepository { return &ingestionLogRepository{v: v} }

func (v *view) WithinTx(ctx context.Context, fn func(repository.Store) error) error {
	if v.tx != nil {
		return fn(v)
	}
	return v.root.WithinTx(ctx, fn)
}

func (s *Store) live() *view { return &view{root: s} }

func (s *Store) Uploads() repository.UploadRepository { return s.live().Uploads() }
func (s *Store) Persons() repository.PersonRepository { return s.live().Persons() }
func (s *Store) Enrichments() repository.EnrichmentRepository { return s.live().Enrichments() }
func (s *Store) Ownership() repository.OwnershipRepository { return s.live().Ownership() }
func (s *Store) IngestionLogs() repository.IngestionLogRepository {
	return s.live().IngestionLogs()
}

// WithinTx runs fn against a private copy of the state and publishes it when fn succeeds.
func (s *Store) WithinTx(ctx context.Context, fn func(repository.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := s.st.clone()
	if err := fn(&view{root: s, tx: tx}); err != nil {
		return err
	}
	s.st = tx
	return nil
}

// SeedBusiness adds a business with one company and one user, returning their ids.
func (s *Store) SeedBusiness(name, userEmail string, userID int64) (businessID, companyID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	businessID = int64(len(s.st.businesses) + 1)
	s.st.businesses[businessID] = domain.Business{ID: businessID, Name: name}
	s.st.nextCompany++
	companyID = s.st.nextCompany
	company := domain.NewCompany(businessID, name)
	company.ID = companyID
	s.st.companies[companyID] = company
	s.st.users[userID] = domain.User{ID: userID, BusinessID: businessID, Email: userEmail}
	return businessID, companyID
}
