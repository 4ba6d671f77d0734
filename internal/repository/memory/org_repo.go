package memory

import (
	"context"

	"github.com/samber/oops"

	"go-identity/internal/model"
)

type OrgRepository struct {
	s *Store
}

func (r *OrgRepository) Direction(_ context.Context, id int64) (model.OrgNode, error) {
	return r.find(model.LevelDirection, id)
}

func (r *OrgRepository) Management(_ context.Context, id int64) (model.OrgNode, error) {
	return r.find(model.LevelManagement, id)
}

func (r *OrgRepository) Coordination(_ context.Context, id int64) (model.OrgNode, error) {
	return r.find(model.LevelCoordination, id)
}

func (r *OrgRepository) find(level model.OrgLevel, id int64) (model.OrgNode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	node, ok := r.s.orgs[orgKey{level, id}]
	if !ok {
		return model.OrgNode{}, oops.Code("ORG_NODE_NOT_FOUND").With("level", level).With("id", id).Wrap(model.ErrOrgNodeNotFound)
	}
	return node, nil
}

func (r *OrgRepository) CreateNode(_ context.Context, level model.OrgLevel, name string, parentID *int64) (model.OrgNode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var parentLevel model.OrgLevel
	switch level {
	case model.LevelDirection:
	case model.LevelManagement:
		parentLevel = model.LevelDirection
	case model.LevelCoordination:
		parentLevel = model.LevelManagement
	default:
		return model.OrgNode{}, oops.Code("ORG_INVALID_LEVEL").Errorf("unknown org level %q", level)
	}

	if parentLevel != "" {
		if parentID == nil {
			return model.OrgNode{}, oops.Code("ORG_PARENT_REQUIRED").With("level", level).Errorf("%s requires a parent", level)
		}
		if _, ok := r.s.orgs[orgKey{parentLevel, *parentID}]; !ok {
			return model.OrgNode{}, oops.Code("ORG_CREATE_FAILED").With("level", level).Wrap(model.ErrOrgNodeNotFound)
		}
	} else {
		parentID = nil
	}

	r.s.nextOrgID++
	node := model.OrgNode{ID: r.s.nextOrgID, Level: level, Name: name, ParentID: parentID, IsActive: true}
	r.s.orgs[orgKey{level, node.ID}] = node
	return node, nil
}

// DeleteNode removes the node and its descendants and nulls every user
// reference to them.
func (r *OrgRepository) DeleteNode(_ context.Context, level model.OrgLevel, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.orgs[orgKey{level, id}]; !ok {
		return oops.Code("ORG_NODE_NOT_FOUND").With("level", level).With("id", id).Wrap(model.ErrOrgNodeNotFound)
	}

	removed := []orgKey{{level, id}}
	for i := 0; i < len(removed); i++ {
		parent := removed[i]
		for key, node := range r.s.orgs {
			if node.ParentID != nil && *node.ParentID == parent.id && childLevel(parent.level) == key.level {
				removed = append(removed, key)
			}
		}
	}

	gone := make(map[orgKey]bool, len(removed))
	for _, key := range removed {
		gone[key] = true
		delete(r.s.orgs, key)
	}

	for userID, u := range r.s.users {
		if u.Org.DirectionID != nil && gone[orgKey{model.LevelDirection, *u.Org.DirectionID}] {
			u.Org.DirectionID = nil
		}
		if u.Org.ManagementID != nil && gone[orgKey{model.LevelManagement, *u.Org.ManagementID}] {
			u.Org.ManagementID = nil
		}
		if u.Org.CoordinationID != nil && gone[orgKey{model.LevelCoordination, *u.Org.CoordinationID}] {
			u.Org.CoordinationID = nil
		}
		r.s.users[userID] = u
	}
	return nil
}

func childLevel(level model.OrgLevel) model.OrgLevel {
	switch level {
	case model.LevelDirection:
		return model.LevelManagement
	case model.LevelManagement:
		return model.LevelCoordination
	}
	return ""
}
