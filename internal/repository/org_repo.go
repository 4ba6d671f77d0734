package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"go-identity/internal/model"
)

// OrgRepository reads and maintains the direction -> management ->
// coordination tree.
type OrgRepository struct {
	pool poolIface
}

func NewOrgRepository(pool poolIface) *OrgRepository {
	return &OrgRepository{pool: pool}
}

func (r *OrgRepository) Direction(ctx context.Context, id int64) (model.OrgNode, error) {
	return r.findNode(ctx, model.LevelDirection,
		`SELECT id, name, NULL::bigint, is_active FROM directions WHERE id = $1`, id)
}

func (r *OrgRepository) Management(ctx context.Context, id int64) (model.OrgNode, error) {
	return r.findNode(ctx, model.LevelManagement,
		`SELECT id, name, direction_id, is_active FROM managements WHERE id = $1`, id)
}

func (r *OrgRepository) Coordination(ctx context.Context, id int64) (model.OrgNode, error) {
	return r.findNode(ctx, model.LevelCoordination,
		`SELECT id, name, management_id, is_active FROM coordinations WHERE id = $1`, id)
}

func (r *OrgRepository) findNode(ctx context.Context, level model.OrgLevel, query string, id int64) (model.OrgNode, error) {
	node := model.OrgNode{Level: level}
	err := r.pool.QueryRow(ctx, query, id).Scan(&node.ID, &node.Name, &node.ParentID, &node.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.OrgNode{}, oops.Code("ORG_NODE_NOT_FOUND").
			With("level", level).
			With("id", id).
			Wrap(model.ErrOrgNodeNotFound)
	}
	if err != nil {
		return model.OrgNode{}, oops.Code("ORG_QUERY_FAILED").With("level", level).With("id", id).Wrap(err)
	}
	return node, nil
}

// CreateNode inserts a node. Managements and coordinations need the parent
// of the level directly above.
func (r *OrgRepository) CreateNode(ctx context.Context, level model.OrgLevel, name string, parentID *int64) (model.OrgNode, error) {
	var query string
	args := []any{name}

	switch level {
	case model.LevelDirection:
		query = `INSERT INTO directions (name) VALUES ($1) RETURNING id`
	case model.LevelManagement:
		query = `INSERT INTO managements (name, direction_id) VALUES ($1, $2) RETURNING id`
	case model.LevelCoordination:
		query = `INSERT INTO coordinations (name, management_id) VALUES ($1, $2) RETURNING id`
	default:
		return model.OrgNode{}, oops.Code("ORG_INVALID_LEVEL").Errorf("unknown org level %q", level)
	}

	if level != model.LevelDirection {
		if parentID == nil {
			return model.OrgNode{}, oops.Code("ORG_PARENT_REQUIRED").With("level", level).Errorf("%s requires a parent", level)
		}
		args = append(args, *parentID)
	}

	node := model.OrgNode{Level: level, Name: name, ParentID: parentID, IsActive: true}
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&node.ID); err != nil {
		return model.OrgNode{}, oops.Code("ORG_CREATE_FAILED").With("level", level).Wrap(err)
	}
	return node, nil
}

// DeleteNode removes a node together with its descendants. User references
// to every removed node are set to NULL first, in the same transaction.
func (r *OrgRepository) DeleteNode(ctx context.Context, level model.OrgLevel, id int64) error {
	steps, err := deleteSteps(level)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return oops.Code("ORG_DELETE_FAILED").With("operation", "begin").Wrap(err)
	}
	defer rollback(ctx, tx)

	last := len(steps) - 1
	for i, step := range steps {
		tag, err := tx.Exec(ctx, step, id)
		if err != nil {
			return oops.Code("ORG_DELETE_FAILED").With("level", level).With("id", id).Wrap(err)
		}
		if i == last && tag.RowsAffected() == 0 {
			return oops.Code("ORG_NODE_NOT_FOUND").With("level", level).With("id", id).Wrap(model.ErrOrgNodeNotFound)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("ORG_DELETE_FAILED").With("operation", "commit").Wrap(err)
	}
	return nil
}

const (
	managementsOfDirection   = `SELECT id FROM managements WHERE direction_id = $1`
	coordinationsOfDirection = `SELECT c.id FROM coordinations c JOIN managements m ON m.id = c.management_id WHERE m.direction_id = $1`
	coordinationsOfMgmt      = `SELECT id FROM coordinations WHERE management_id = $1`
)

// deleteSteps lists the statements for one level, leaves first. The last
// statement deletes the node itself.
func deleteSteps(level model.OrgLevel) ([]string, error) {
	switch level {
	case model.LevelDirection:
		return []string{
			fmt.Sprintf(`UPDATE users SET coordination_id = NULL WHERE coordination_id IN (%s)`, coordinationsOfDirection),
			fmt.Sprintf(`UPDATE users SET management_id = NULL WHERE management_id IN (%s)`, managementsOfDirection),
			`UPDATE users SET direction_id = NULL WHERE direction_id = $1`,
			fmt.Sprintf(`DELETE FROM coordinations WHERE id IN (%s)`, coordinationsOfDirection),
			`DELETE FROM managements WHERE direction_id = $1`,
			`DELETE FROM directions WHERE id = $1`,
		}, nil
	case model.LevelManagement:
		return []string{
			fmt.Sprintf(`UPDATE users SET coordination_id = NULL WHERE coordination_id IN (%s)`, coordinationsOfMgmt),
			`UPDATE users SET management_id = NULL WHERE management_id = $1`,
			`DELETE FROM coordinations WHERE management_id = $1`,
			`DELETE FROM managements WHERE id = $1`,
		}, nil
	case model.LevelCoordination:
		return []string{
			`UPDATE users SET coordination_id = NULL WHERE coordination_id = $1`,
			`DELETE FROM coordinations WHERE id = $1`,
		}, nil
	}
	return nil, oops.Code("ORG_INVALID_LEVEL").Errorf("unknown org level %q", level)
}
