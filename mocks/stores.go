// Package mocks provides in-memory implementations of the store, fetcher and publisher interfaces for tests
package mocks

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/google/uuid"

	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/models"
)

// GymStore is an in-memory stores.GymStore
type GymStore struct {
	mu    sync.Mutex
	gyms  map[string]*models.SourceGym
	order []string
	meta  map[models.Federation]*models.GymSyncMeta

	// USIBJJFExternalIDs restricts ListUSIBJJFGyms to these ids when set
	USIBJJFExternalIDs map[string]bool

	UpsertErr   error
	GetErr      error
	SnapshotErr error
	MetaErr     error

	SnapshotCalls int
	UpsertCalls   int
}

func NewGymStore(gyms ...models.SourceGym) *GymStore {
	s := &GymStore{
		gyms: make(map[string]*models.SourceGym),
		meta: make(map[models.Federation]*models.GymSyncMeta),
	}
	for _, g := range gyms {
		s.put(g)
	}
	return s
}

func (s *GymStore) put(g models.SourceGym) {
	key := g.Key()
	if existing, ok := s.gyms[key]; ok {
		g.MasterGymID = existing.MasterGymID
		g.CreatedAt = existing.CreatedAt
	} else {
		s.order = append(s.order, key)
		if g.CreatedAt.IsZero() {
			g.CreatedAt = time.Now().UTC()
		}
	}
	g.UpdatedAt = time.Now().UTC()
	s.gyms[key] = &g
}

// Seed stores a gym as-is, including its master gym link
func (s *GymStore) Seed(g models.SourceGym) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := g.Key()
	if _, ok := s.gyms[key]; !ok {
		s.order = append(s.order, key)
	}
	s.gyms[key] = &g
}

func (s *GymStore) Upsert(_ context.Context, gym *models.SourceGym) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.UpsertCalls++
	if s.UpsertErr != nil {
		return s.UpsertErr
	}
	s.put(*gym)
	return nil
}

func (s *GymStore) UpsertBatch(ctx context.Context, gyms []models.SourceGym) (int, error) {
	saved := 0
	for i := range gyms {
		if err := s.Upsert(ctx, &gyms[i]); err != nil {
			return saved, err
		}
		saved++
	}
	return saved, nil
}

func (s *GymStore) Get(_ context.Context, federation models.Federation, externalID string) (*models.SourceGym, error) {
	return s.GetByKey(context.Background(), models.SourceGymKey(federation, externalID))
}

func (s *GymStore) GetByKey(_ context.Context, key string) (*models.SourceGym, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	g, ok := s.gyms[key]
	if !ok {
		return nil, nil
	}
	cp := *g
	return &cp, nil
}

func (s *GymStore) ListByFederation(_ context.Context, federation models.Federation, cursor string, limit int) (models.Page[models.SourceGym], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.listLocked(func(g *models.SourceGym) bool { return g.Federation == federation })
	return paginate(all, cursor, limit)
}

func (s *GymStore) ListUSIBJJFGyms(_ context.Context) ([]models.SourceGym, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SnapshotCalls++
	if s.SnapshotErr != nil {
		return nil, s.SnapshotErr
	}
	return s.listLocked(func(g *models.SourceGym) bool {
		if g.Federation != models.FederationIBJJF {
			return false
		}
		return s.USIBJJFExternalIDs == nil || s.USIBJJFExternalIDs[g.ExternalID]
	}), nil
}

func (s *GymStore) GetSyncMeta(_ context.Context, federation models.Federation) (*models.GymSyncMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.MetaErr != nil {
		return nil, s.MetaErr
	}
	m, ok := s.meta[federation]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (s *GymStore) UpdateSyncMeta(_ context.Context, meta *models.GymSyncMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.MetaErr != nil {
		return s.MetaErr
	}
	cp := *meta
	s.meta[meta.Federation] = &cp
	return nil
}

func (s *GymStore) ListByMasterGym(_ context.Context, masterGymID string) ([]models.SourceGym, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked(func(g *models.SourceGym) bool {
		return g.MasterGymID != nil && *g.MasterGymID == masterGymID
	}), nil
}

// All returns every stored gym in insertion order
func (s *GymStore) All() []models.SourceGym {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked(func(*models.SourceGym) bool { return true })
}

func (s *GymStore) listLocked(keep func(*models.SourceGym) bool) []models.SourceGym {
	out := make([]models.SourceGym, 0)
	for _, key := range s.order {
		g := s.gyms[key]
		if keep(g) {
			out = append(out, *g)
		}
	}
	return out
}

func (s *GymStore) setMaster(key string, masterGymID *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.gyms[key]
	if !ok {
		return fmt.Errorf("source gym %s not found", key)
	}
	g.MasterGymID = masterGymID
	return nil
}

// MasterGymStore is an in-memory stores.MasterGymStore that writes links through to a GymStore
type MasterGymStore struct {
	mu      sync.Mutex
	gyms    *GymStore
	masters map[string]*models.MasterGym

	CreateErr error
	LinkErr   error

	CreateCalls int
	LinkCalls   int
}

func NewMasterGymStore(gyms *GymStore) *MasterGymStore {
	return &MasterGymStore{
		gyms:    gyms,
		masters: make(map[string]*models.MasterGym),
	}
}

func (s *MasterGymStore) Create(_ context.Context, gym *models.MasterGym) (*models.MasterGym, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CreateCalls++
	if s.CreateErr != nil {
		return nil, s.CreateErr
	}
	cp := *gym
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	cp.CreatedAt = time.Now().UTC()
	cp.UpdatedAt = cp.CreatedAt
	s.masters[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (s *MasterGymStore) Get(_ context.Context, id string) (*models.MasterGym, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.masters[id]
	if !ok {
		return nil, fmt.Errorf("master gym %s not found", id)
	}
	cp := *m
	return &cp, nil
}

func (s *MasterGymStore) Link(_ context.Context, sourceGymKey string, masterGymID string) error {
	s.mu.Lock()
	s.LinkCalls++
	err := s.LinkErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	id := masterGymID
	return s.gyms.setMaster(sourceGymKey, &id)
}

func (s *MasterGymStore) Unlink(_ context.Context, sourceGymKey string) error {
	return s.gyms.setMaster(sourceGymKey, nil)
}

// Count returns the number of master gyms created
func (s *MasterGymStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.masters)
}

// PendingMatchStore is an in-memory stores.PendingMatchStore
type PendingMatchStore struct {
	mu      sync.Mutex
	matches []*models.PendingMatch

	CreateErr error
	FindErr   error

	ReopenCalls int
}

func NewPendingMatchStore(matches ...models.PendingMatch) *PendingMatchStore {
	s := &PendingMatchStore{}
	for i := range matches {
		m := matches[i]
		s.matches = append(s.matches, &m)
	}
	return s
}

func (s *PendingMatchStore) Create(_ context.Context, match *models.PendingMatch) (*models.PendingMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateErr != nil {
		return nil, s.CreateErr
	}
	cp := *match
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	if cp.Status == "" {
		cp.Status = models.PendingMatchStatusPending
	}
	cp.CreatedAt = time.Now().UTC()
	cp.UpdatedAt = cp.CreatedAt
	s.matches = append(s.matches, &cp)
	out := cp
	return &out, nil
}

func (s *PendingMatchStore) Get(_ context.Context, id string) (*models.PendingMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.matches {
		if m.ID == id {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *PendingMatchStore) FindActiveByPair(_ context.Context, gymKeyA, gymKeyB string) (*models.PendingMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FindErr != nil {
		return nil, s.FindErr
	}
	pair := models.PairKey(gymKeyA, gymKeyB)
	for _, m := range s.matches {
		if m.IsPending() && m.PairKey() == pair {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *PendingMatchStore) ListByStatus(_ context.Context, status string) ([]models.PendingMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.PendingMatch, 0)
	for _, m := range s.matches {
		if m.Status == status {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *PendingMatchStore) UpdateStatus(_ context.Context, id string, status string, reviewedBy string, reviewedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.find(id, models.PendingMatchStatusPending)
	if err != nil {
		return err
	}
	m.Status = status
	m.ReviewedBy = &reviewedBy
	at := reviewedAt
	m.ReviewedAt = &at
	m.UpdatedAt = reviewedAt
	return nil
}

func (s *PendingMatchStore) Reopen(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ReopenCalls++
	m, err := s.find(id, models.PendingMatchStatusApproved)
	if err != nil {
		return err
	}
	m.Status = models.PendingMatchStatusPending
	m.ReviewedBy = nil
	m.ReviewedAt = nil
	return nil
}

// find returns the stored match when it is in status, with the repository's 404/409 otherwise
func (s *PendingMatchStore) find(id, status string) (*models.PendingMatch, error) {
	for _, m := range s.matches {
		if m.ID != id {
			continue
		}
		if m.Status != status {
			return nil, httperror.NewHTTPErrorf(http.StatusConflict, "pending match %s is already %s", id, m.Status)
		}
		return m, nil
	}
	return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "pending match %s not found", id)
}

// All returns every stored match
func (s *PendingMatchStore) All() []models.PendingMatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.PendingMatch, 0, len(s.matches))
	for _, m := range s.matches {
		out = append(out, *m)
	}
	return out
}

// TournamentStore is an in-memory stores.TournamentStore
type TournamentStore struct {
	mu          sync.Mutex
	Tournaments []models.Tournament
	PageCalls   int
}

func (s *TournamentStore) ListInWindow(_ context.Context, from, to time.Time, cursor string, limit int) (models.Page[models.Tournament], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PageCalls++

	inWindow := make([]models.Tournament, 0)
	for _, t := range s.Tournaments {
		if !t.StartDate.Before(from) && !t.StartDate.After(to) {
			inWindow = append(inWindow, t)
		}
	}
	sort.SliceStable(inWindow, func(i, j int) bool {
		return inWindow[i].StartDate.Before(inWindow[j].StartDate)
	})
	return paginate(inWindow, cursor, limit)
}

// WishlistStore is an in-memory stores.WishlistStore
type WishlistStore struct {
	TournamentIDs []string
	Err           error
}

func (s *WishlistStore) ListWishlistedTournamentIDs(context.Context, time.Time, time.Time) ([]string, error) {
	return s.TournamentIDs, s.Err
}

// AthleteStore is an in-memory stores.AthleteStore
type AthleteStore struct {
	Athletes []models.Athlete
	Err      error
}

func (s *AthleteStore) ListAthletesWithGym(context.Context) ([]models.Athlete, error) {
	out := make([]models.Athlete, 0, len(s.Athletes))
	for _, a := range s.Athletes {
		if a.GymExternalID != nil {
			out = append(out, a)
		}
	}
	return out, s.Err
}

// UserProfileStore is an in-memory stores.UserProfileStore
type UserProfileStore struct {
	MasterGymIDs []string
	Err          error
}

func (s *UserProfileStore) ListMasterGymIDs(context.Context) ([]string, error) {
	return s.MasterGymIDs, s.Err
}

// RosterStore records saved rosters
type RosterStore struct {
	mu      sync.Mutex
	Rosters map[string][]models.RosterAthlete
	Err     error
}

func NewRosterStore() *RosterStore {
	return &RosterStore{Rosters: make(map[string][]models.RosterAthlete)}
}

func (s *RosterStore) SaveRoster(_ context.Context, pair models.RosterPair, athletes []models.RosterAthlete) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Rosters[pair.Key()] = athletes
	return nil
}

func paginate[T any](items []T, cursor string, limit int) (models.Page[T], error) {
	start := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil {
			return models.Page[T]{}, fmt.Errorf("invalid cursor %q", cursor)
		}
		start = n
	}
	if limit <= 0 {
		limit = len(items)
	}
	if start > len(items) {
		start = len(items)
	}
	end := min(start+limit, len(items))

	page := models.Page[T]{Items: append([]T(nil), items[start:end]...)}
	if end < len(items) {
		page.NextCursor = strconv.Itoa(end)
	}
	return page, nil
}
