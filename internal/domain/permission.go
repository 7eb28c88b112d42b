package domain

// Permission names a capability checked against a team or a board.
type Permission string

const (
	PermissionViewTeam  Permission = "view_team"
	PermissionViewBoard Permission = "view_board"
)
