// Package storetest provides an in-memory store.Store for tests. It enforces
// the same keys and foreign keys as the PostgreSQL schema and rolls back
// transactions on error or panic.
package storetest

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/winhacks/hackbot/internal/models"
	"github.com/winhacks/hackbot/internal/store"
)

type inviteKey struct{ invitee, team string }

type state struct {
	hackers    map[string]models.Hacker
	teams      map[string]models.Team
	invites    map[inviteKey]models.Invite
	categories map[string]models.Category
}

func (s state) clone() state {
	c := state{
		hackers:    make(map[string]models.Hacker, len(s.hackers)),
		teams:      make(map[string]models.Team, len(s.teams)),
		invites:    make(map[inviteKey]models.Invite, len(s.invites)),
		categories: make(map[string]models.Category, len(s.categories)),
	}
	for k, v := range s.hackers {
		c.hackers[k] = v
	}
	for k, v := range s.teams {
		c.teams[k] = v
	}
	for k, v := range s.invites {
		c.invites[k] = v
	}
	for k, v := range s.categories {
		c.categories[k] = v
	}
	return c
}

// Store is an in-memory store.Store. The zero value is not usable; use New.
type Store struct {
	txMu sync.Mutex

	mu     sync.Mutex
	data   state
	clock  time.Time
	faults map[string]error
	locks  []string
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		data:   state{}.clone(),
		clock:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		faults: map[string]error{},
	}
}

// Fail makes every later call to the named method return err. A nil err
// clears the fault.
func (s *Store) Fail(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, method)
		return
	}
	s.faults[method] = err
}

// now returns a strictly increasing timestamp so ordering is deterministic.
func (s *Store) now() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

// Transaction implements store.Store. Transactions are serialized.
func (s *Store) Transaction(ctx context.Context, fn func(tx store.Store) error) (err error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snap := s.data.clone()
	fault := s.faults["Transaction"]
	s.mu.Unlock()
	if fault != nil {
		return fault
	}

	rollback := func() {
		s.mu.Lock()
		s.data = snap
		s.mu.Unlock()
	}
	defer func() {
		if r := recover(); r != nil {
			rollback()
			panic(r)
		}
	}()
	if err = fn(txStore{s}); err != nil {
		rollback()
	}
	return err
}

// txStore is the view handed to a transaction body; nested transactions
// join the outer one.
type txStore struct{ *Store }

func (t txStore) Transaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(t)
}

// LockTeam implements store.TeamStore. Transactions are already serialized,
// so it only checks the team exists and records the call.
func (t txStore) LockTeam(ctx context.Context, stdName string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.faults["LockTeam"]; err != nil {
		return err
	}
	if _, ok := t.data.teams[stdName]; !ok {
		return store.ErrNotFound
	}
	t.locks = append(t.locks, stdName)
	return nil
}

// LockTeam implements store.TeamStore. Outside a transaction the lock would
// be released immediately, so the call is refused.
func (s *Store) LockTeam(ctx context.Context, stdName string) error {
	return errLockOutsideTx
}

var errLockOutsideTx = errors.New("storetest: LockTeam outside a transaction")

// Locks returns the teams locked so far, in call order.
func (s *Store) Locks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.locks...)
}

func (s *Store) withTeam(h models.Hacker) *models.Hacker {
	if h.TeamStdName != nil {
		if t, ok := s.data.teams[*h.TeamStdName]; ok {
			h.Team = &t
		}
	}
	return &h
}

// CountVerifiedHackers implements store.HackerStore.
func (s *Store) CountVerifiedHackers(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.faults["CountVerifiedHackers"]; err != nil {
		return 0, err
	}
	n := 0
	for _, h := range s.data.hackers {
		if h.Verified {
			n++
		}
	}
	return n, nil
}

// GetHacker implements store.HackerStore.
func (s *Store) GetHacker(ctx context.Context, discordID string) (*models.Hacker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.faults["GetHacker"]; err != nil {
		return nil, err
	}
	h, ok := s.data.hackers[discordID]
	if !ok {
		return nil, nil
	}
	return s.withTeam(h), nil
}

// UpsertHacker implements store.HackerStore.
func (s *Store) UpsertHacker(ctx context.Context, h *models.Hacker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.faults["UpsertHacker"]; err != nil {
		return err
	}
	for id, other := range s.data.hackers {
		if id != h.DiscordID && other.Verified && other.Email == h.Email {
			return store.ErrConflict
		}
	}
	now := s.now()
	row, ok := s.data.hackers[h.DiscordID]
	if !ok {
		row = models.Hacker{DiscordID: h.DiscordID, CreatedAt: now}
	}
	row.FirstName, row.LastName, row.Email = h.FirstName, h.LastName, h.Email
	row.Verified = true
	row.VerifiedAt = &now
	row.UpdatedAt = now
	row.Team = nil
	s.data.hackers[h.DiscordID] = row

	h.TeamStdName = row.TeamStdName
	h.Verified = true
	h.VerifiedAt = row.VerifiedAt
	h.CreatedAt = row.CreatedAt
	h.UpdatedAt = row.UpdatedAt
	return nil
}

// UnverifyHacker implements store.HackerStore.
func (s *Store) UnverifyHacker(ctx context.Context, discordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.faults["UnverifyHacker"]; err != nil {
		return err
	}
	h, ok := s.data.hackers[discordID]
	if !ok {
		return store.ErrNotFound
	}
	h.Verified = false
	h.VerifiedAt = nil
	h.UpdatedAt = s.now()
	s.data.hackers[discordID] = h
	return nil
}

// DeleteHacker implements store.HackerStore.
func (s *Store) DeleteHacker(ctx context.Context, discordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.faults["DeleteHacker"]; err != nil {
		return err
	}
	if _, ok := s.data.hackers[discordID]; !ok {
		return store.ErrNotFound
	}
	delete(s.data.hackers, discordID)
	return nil
}

// IsEmailVerified implements store.HackerStore.
func (s *Store) IsEmailVerified(ctx context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.faults["IsEmailVerified"]; err != nil {
		return false, err
	}
	for _, h := range s.data.hackers {
		if h.Verified && h.Email == email {
			return true, nil
		}
	}
	return false, nil
}

// SetHackerTeam implements store.HackerStore.
func (s *Store) SetHackerTeam(ctx context.Context, discordID string, teamStdName *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.faults["SetHackerTeam"]; err != nil {
		return err
	}
	h, ok := s.data.hackers[discordID]
	if !ok {
		return store.ErrNotFound
	}
	if teamStdName != nil {
		if _, ok := s.data.teams[*teamStdName]; !ok {
			return store.ErrNotFound
		}
		name := *teamStdName
		teamStdName = &name
	}
	h.TeamStdName = teamStdName
	h.UpdatedAt = s.now()
	s.data.hackers[discordID] = h
	return nil
}

// GetTeam implements store.TeamStore.
func (s *Store) GetTeam(ctx context.Context, stdName string) (*models.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.faults["GetTeam"]; err != nil {
		return nil, err
	}
	t, ok := s.data.teams[stdName]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

// GetHackerTeam implements store.TeamStore.
func (s *Store) GetHackerTeam(ctx context.Context, discordID string) (*models.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.faults["GetHackerTeam"]; err != nil {
		return nil, err
	}
	h, ok := s.data.hackers[discordID]
	if !ok || h.TeamStdName == nil {
		return nil, nil
	}
	t, ok := s.data.teams[*h.TeamStdName]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

// ListTeamMembers implements store.TeamStore.
func (s *Store) ListTeamMembers(ctx context.Context, stdName string) ([]*models.Hacker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.faults["ListTeamMembers"]; err != nil {
		return nil, err
	}
	var list []*models.Hacker
	for _, h := range s.data.hackers {
		if h.TeamStdName != nil && *h.TeamStdName == stdName {
			list = append(list, s.withTeam(h))
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].DiscordID < list[j].DiscordID
	})
	return list, nil
}

// CreateTeam implements store.TeamStore.
func (s *Store) CreateTeam(ctx context.Context, t *models.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.faults["CreateTeam"]; err != nil {
		return err
	}
	if _, ok := s.data.teams[t.StdName]; ok {
		return store.ErrConflict
	}
	if _, ok := s.data.categories[t.CategoryID]; !ok {
		return store.ErrNotFound
	}
	t.CreatedAt = s.now()
	s.data.teams[t.StdName] = *t
	return nil
}

// DeleteTeam implements store.TeamStore.
func (s *Store) DeleteTeam(ctx context.Context, stdName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.faults["DeleteTeam"]; err != nil {
		return err
	}
	if _, ok := s.data.teams[stdName]; !ok {
		return store.ErrNotFound
	}
	delete(s.data.teams, stdName)
	for k := range s.data.invites {
		if k.team == stdName {
			delete(s.data.invites, k)
		}
	}
	for id, h := range s.data.hackers {
		if h.TeamStdName != nil && *h.TeamStdName == stdName {
			h.TeamStdName = nil
			s.data.hackers[id] = h
		}
	}
	return nil
}

// CreateCategory implements store.TeamStore.
func (s *Store) CreateCategory(ctx context.Context, categoryID string) (*models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.faults["CreateCategory"]; err != nil {
		return nil, err
	}
	if _, ok := s.data.categories[categoryID]; ok {
		return nil, store.ErrConflict
	}
	c := models.Category{CategoryID: categoryID, CreatedAt: s.now()}
	s.data.categories[categoryID] = c
	return &c, nil
}

// ListCategories implements store.TeamStore.
func (s *Store) ListCategories(ctx context.Context) ([]*models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.faults["ListCategories"]; err != nil {
		return nil, err
	}
	counts := map[string]int{}
	for _, t := range s.data.teams {
		counts[t.CategoryID]++
	}
	list := make([]*models.Category, 0, len(s.data.categories))
	for _, c := range s.data.categories {
		c.TeamCount = counts[c.CategoryID]
		list = append(list, &c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list, nil
}

// UpsertInvite implements store.InviteStore.
func (s *Store) UpsertInvite(ctx context.Context, inviteeID, teamStdName string) (*models.Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.faults["UpsertInvite"]; err != nil {
		return nil, err
	}
	if _, ok := s.data.teams[teamStdName]; !ok {
		return nil, store.ErrNotFound
	}
	key := inviteKey{inviteeID, teamStdName}
	inv, ok := s.data.invites[key]
	if !ok {
		inv = models.Invite{InviteeID: inviteeID, TeamStdName: teamStdName, CreatedAt: s.now()}
		s.data.invites[key] = inv
	}
	return &inv, nil
}

// GetInvite implements store.InviteStore.
func (s *Store) GetInvite(ctx context.Context, inviteeID, teamStdName string) (*models.Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.faults["GetInvite"]; err != nil {
		return nil, err
	}
	inv, ok := s.data.invites[inviteKey{inviteeID, teamStdName}]
	if !ok {
		return nil, nil
	}
	t, ok := s.data.teams[teamStdName]
	if !ok {
		return nil, nil
	}
	inv.Team = &t
	return &inv, nil
}

// DeleteInvite implements store.InviteStore.
func (s *Store) DeleteInvite(ctx context.Context, inviteeID, teamStdName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.faults["DeleteInvite"]; err != nil {
		return err
	}
	key := inviteKey{inviteeID, teamStdName}
	if _, ok := s.data.invites[key]; !ok {
		return store.ErrNotFound
	}
	delete(s.data.invites, key)
	return nil
}

// ListHackerInvites implements store.InviteStore.
func (s *Store) ListHackerInvites(ctx context.Context, discordID string) ([]*models.Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.faults["ListHackerInvites"]; err != nil {
		return nil, err
	}
	var list []*models.Invite
	for k, inv := range s.data.invites {
		if k.invitee != discordID {
			continue
		}
		if t, ok := s.data.teams[k.team]; ok {
			inv.Team = &t
		}
		list = append(list, &inv)
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return strings.Compare(list[i].TeamStdName, list[j].TeamStdName) < 0
	})
	return list, nil
}
