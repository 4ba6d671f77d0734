package service

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"go-identity/internal/model"
)

const (
	maxNameLength       = 150
	maxNationalIDLength = 14
	maxPhoneLength      = 20
	maxAvatarURLLength  = 500
)

// ProfileService reads and edits the caller's own profile.
type ProfileService struct {
	users UserDirectory
	orgs  OrgDirectory
	log   *slog.Logger
	now   func() time.Time
}

func NewProfileService(users UserDirectory, orgs OrgDirectory, log *slog.Logger) *ProfileService {
	if log == nil {
		log = slog.Default()
	}
	return &ProfileService{
		users: users,
		orgs:  orgs,
		log:   log.With("component", "profile"),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *ProfileService) Get(ctx context.Context, identity model.Identity) (model.Profile, error) {
	user, err := s.currentUser(ctx, identity)
	if err != nil {
		return model.Profile{}, err
	}
	return user.Profile(), nil
}

// Update applies a partial edit. Placement changes are checked against the
// hierarchy and missing ancestors are filled in from the chosen descendant.
func (s *ProfileService) Update(ctx context.Context, identity model.Identity, update model.ProfileUpdate) (model.Profile, error) {
	user, err := s.currentUser(ctx, identity)
	if err != nil {
		return model.Profile{}, err
	}

	if err := applyProfileFields(&user, update); err != nil {
		return model.Profile{}, err
	}

	placement, err := s.resolvePlacement(ctx, user.Org, update)
	if err != nil {
		return model.Profile{}, err
	}
	user.Org = placement
	user.UpdatedAt = s.now()

	if err := s.users.Save(ctx, user); err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return model.Profile{}, model.ErrInvalidSession
		}
		return model.Profile{}, err
	}

	saved, err := s.users.FindByID(ctx, user.ID)
	if err != nil {
		return model.Profile{}, err
	}
	s.log.InfoContext(ctx, "profile updated", "user_id", user.ID)
	return saved.Profile(), nil
}

func (s *ProfileService) currentUser(ctx context.Context, identity model.Identity) (model.User, error) {
	user, err := s.users.FindByID(ctx, identity.UserID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, model.ErrInvalidSession
	}
	if err != nil {
		return model.User{}, err
	}
	if !user.IsActive {
		return model.User{}, model.ErrInvalidSession
	}
	return user, nil
}

func applyProfileFields(user *model.User, update model.ProfileUpdate) error {
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return model.NewValidationError("name", "name is required")
		}
		if utf8.RuneCountInString(name) > maxNameLength {
			return model.NewValidationError("name", "name is too long")
		}
		user.Name = name
	}

	nationalID, err := optionalText("cpf", update.NationalID, update.ClearNationalID, maxNationalIDLength)
	if err != nil {
		return err
	}
	if update.NationalID != nil || update.ClearNationalID {
		user.NationalID = nationalID
	}

	phone, err := optionalText("phone", update.Phone, update.ClearPhone, maxPhoneLength)
	if err != nil {
		return err
	}
	if update.Phone != nil || update.ClearPhone {
		user.Phone = phone
	}

	avatar, err := optionalText("avatar", update.AvatarURL, update.ClearAvatarURL, maxAvatarURLLength)
	if err != nil {
		return err
	}
	if avatar != nil {
		u, err := url.Parse(*avatar)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return model.NewValidationError("avatar", "avatar must be an http or https URL")
		}
	}
	if update.AvatarURL != nil || update.ClearAvatarURL {
		user.AvatarURL = avatar
	}
	return nil
}

// optionalText trims a nullable field. Blank values clear it.
func optionalText(field string, value *string, clear bool, maxLen int) (*string, error) {
	if clear || value == nil {
		return nil, nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(v) > maxLen {
		return nil, model.NewValidationError(field, "value is too long")
	}
	return &v, nil
}

// resolvePlacement merges the edit into the current placement.
//
// Descendants that were not named in the edit are dropped when their
// ancestor changes underneath them. Ancestors that are left empty are then
// filled from the chosen descendant; ancestors that were named must match it.
func (s *ProfileService) resolvePlacement(ctx context.Context, current model.OrgPlacement, update model.ProfileUpdate) (model.OrgPlacement, error) {
	dirSet := update.DirectionID != nil || update.ClearDirection
	mgmtSet := update.ManagementID != nil || update.ClearManagement
	coordSet := update.CoordinationID != nil || update.ClearCoordination

	if !dirSet && !mgmtSet && !coordSet {
		return current, nil
	}

	dir := pick(current.DirectionID, update.DirectionID, update.ClearDirection)
	mgmt := pick(current.ManagementID, update.ManagementID, update.ClearManagement)
	coord := pick(current.CoordinationID, update.CoordinationID, update.ClearCoordination)

	if !mgmtSet && mgmt != nil && dirSet && !sameID(dir, current.DirectionID) {
		node, err := s.orgs.Management(ctx, *mgmt)
		if err != nil && !errors.Is(err, model.ErrOrgNodeNotFound) {
			return model.OrgPlacement{}, err
		}
		if err != nil || !sameID(node.ParentID, dir) {
			mgmt = nil
		}
	}
	if !coordSet && coord != nil && !sameID(mgmt, current.ManagementID) {
		node, err := s.orgs.Coordination(ctx, *coord)
		if err != nil && !errors.Is(err, model.ErrOrgNodeNotFound) {
			return model.OrgPlacement{}, err
		}
		if err != nil || !sameID(node.ParentID, mgmt) {
			coord = nil
		}
	}

	if coord != nil {
		node, err := s.lookupNode(ctx, model.LevelCoordination, *coord, !sameID(coord, current.CoordinationID))
		if err != nil {
			return model.OrgPlacement{}, err
		}
		if mgmt, err = reconcileParent(mgmt, node, update.ClearManagement, "management_id"); err != nil {
			return model.OrgPlacement{}, err
		}
	}
	if mgmt != nil {
		node, err := s.lookupNode(ctx, model.LevelManagement, *mgmt, !sameID(mgmt, current.ManagementID))
		if err != nil {
			return model.OrgPlacement{}, err
		}
		if dir, err = reconcileParent(dir, node, update.ClearDirection, "direction_id"); err != nil {
			return model.OrgPlacement{}, err
		}
	}
	if dir != nil {
		if _, err := s.lookupNode(ctx, model.LevelDirection, *dir, !sameID(dir, current.DirectionID)); err != nil {
			return model.OrgPlacement{}, err
		}
	}

	return model.OrgPlacement{DirectionID: dir, ManagementID: mgmt, CoordinationID: coord}, nil
}

// lookupNode loads a node. Newly chosen nodes must also be active.
func (s *ProfileService) lookupNode(ctx context.Context, level model.OrgLevel, id int64, chosen bool) (model.OrgNode, error) {
	var (
		node model.OrgNode
		err  error
	)
	switch level {
	case model.LevelDirection:
		node, err = s.orgs.Direction(ctx, id)
	case model.LevelManagement:
		node, err = s.orgs.Management(ctx, id)
	default:
		node, err = s.orgs.Coordination(ctx, id)
	}

	field := string(level) + "_id"
	if errors.Is(err, model.ErrOrgNodeNotFound) {
		return model.OrgNode{}, model.NewValidationError(field, string(level)+" does not exist")
	}
	if err != nil {
		return model.OrgNode{}, err
	}
	if chosen && !node.IsActive {
		return model.OrgNode{}, model.NewValidationError(field, string(level)+" is not active")
	}
	return node, nil
}

// reconcileParent returns the parent id the child requires. An empty parent
// is filled in; a different one is rejected.
func reconcileParent(parent *int64, child model.OrgNode, cleared bool, field string) (*int64, error) {
	if child.ParentID == nil {
		return parent, nil
	}
	if parent == nil {
		if cleared {
			return nil, model.NewValidationError(field, "cannot be cleared while a "+string(child.Level)+" is set")
		}
		id := *child.ParentID
		return &id, nil
	}
	if *parent != *child.ParentID {
		return nil, model.NewValidationError(string(child.Level)+"_id", string(child.Level)+" does not belong to the selected "+strings.TrimSuffix(field, "_id"))
	}
	return parent, nil
}

func pick(current *int64, value *int64, clear bool) *int64 {
	switch {
	case clear:
		return nil
	case value != nil:
		v := *value
		return &v
	default:
		return current
	}
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
