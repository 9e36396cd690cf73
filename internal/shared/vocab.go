package shared

// Resources guarded on the management surface.
const (
	ResourceUsers     = "users"
	ResourceUserRoles = "user_roles"
	ResourceRoles     = "roles"
)

// CRUD-style action verbs. The engine treats these as opaque tokens; the
// closed vocabulary lives here so guards and seeds agree.
const (
	ActionCreate = "create"
	ActionRead   = "read"
	ActionUpdate = "update"
	ActionDelete = "delete"
)
