// Package memory is a mutex-guarded, process-local implementation of the
// credential store. It backs STORE_DRIVER=memory and the service tests.
package memory

import (
	"sync"
	"time"

	"go-identity/internal/model"
)

type orgKey struct {
	level model.OrgLevel
	id    int64
}

// Store holds all state behind one lock so that multi-record operations
// such as reset consumption are atomic.
type Store struct {
	mu sync.Mutex

	users       map[string]model.User
	emails      map[string]string
	orgs        map[orgKey]model.OrgNode
	nextOrgID   int64
	revocations map[string]model.RevocationEntry
	watermarks  map[string]time.Time
	resets      map[string]model.ResetToken
}

func New() *Store {
	return &Store{
		users:       map[string]model.User{},
		emails:      map[string]string{},
		orgs:        map[orgKey]model.OrgNode{},
		revocations: map[string]model.RevocationEntry{},
		watermarks:  map[string]time.Time{},
		resets:      map[string]model.ResetToken{},
	}
}

func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }
func (s *Store) Orgs() *OrgRepository { return &OrgRepository{s: s} }
func (s *Store) Revocations() *RevocationRepository { return &RevocationRepository{s: s} }
func (s *Store) Resets() *ResetRepository { return &ResetRepository{s: s} }

// resolveOrgNames fills placement names from the current tree. Caller holds mu.
func (s *Store) resolveOrgNames(u model.User) model.User {
	name := func(level model.OrgLevel, id *int64) *string {
		if id == nil {
			return nil
		}
		node, ok := s.orgs[orgKey{level, *id}]
		if !ok {
			return nil
		}
		n := node.Name
		return &n
	}

	u.Org.DirectionName = name(model.LevelDirection, u.Org.DirectionID)
	u.Org.ManagementName = name(model.LevelManagement, u.Org.ManagementID)
	u.Org.CoordinationName = name(model.LevelCoordination, u.Org.CoordinationID)
	return u
}
