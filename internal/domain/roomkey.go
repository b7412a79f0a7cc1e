package domain

// Channel kinds recognised by the callers that mint room keys.
const (
	KindTeam   = "team"
	KindMentor = "mentor"
)

// RoomKey combines a parent entity id with a channel kind into the opaque
// room identifier used everywhere else ("team_42", "mentor_7"). An empty kind
// passes the raw id through.
func RoomKey(kind, parentID string) string {
	if kind == "" {
		return parentID
	}
	return kind + "_" + parentID
}
