package shared

type contextKey string

// ActorContextKey carries the acting admin user's id, populated by the
// auth collaborator at the transport boundary.
const ActorContextKey contextKey = "actor"
