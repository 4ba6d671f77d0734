package model

type OrgLevel string

const (
	LevelDirection    OrgLevel = "direction"
	LevelManagement   OrgLevel = "management"
	LevelCoordination OrgLevel = "coordination"
)

// ParseOrgLevel accepts the lower-case level names used by the CLI.
func ParseOrgLevel(raw string) (OrgLevel, bool) {
	switch OrgLevel(raw) {
	case LevelDirection, LevelManagement, LevelCoordination:
		return OrgLevel(raw), true
	}
	return "", false
}

// OrgNode is one node of the direction -> management -> coordination tree.
// ParentID is nil for directions.
type OrgNode struct {
	ID       int64    `json:"id"`
	Level    OrgLevel `json:"level"`
	Name     string   `json:"name"`
	ParentID *int64   `json:"parent_id,omitempty"`
	IsActive bool     `json:"is_active"`
}

// OrgPlacement is a user's position in the hierarchy. Names are resolved on
// read and ignored on write.
type OrgPlacement struct {
	DirectionID      *int64  `json:"direction_id"`
	DirectionName    *string `json:"direction_name"`
	ManagementID     *int64  `json:"management_id"`
	ManagementName   *string `json:"management_name"`
	CoordinationID   *int64  `json:"coordination_id"`
	CoordinationName *string `json:"coordination_name"`
}
