// Package storage provides the multi-backend persistence layer: a one-time
// connection probe that resolves which physical backend is live, and a
// uniform adapter dispatching every data operation to the resolved backend.
package storage

// ConnectionMethod identifies the physical backend a resolved adapter talks
// to. It is written once by the probe and read-only for the adapter's
// lifetime; every dispatch site switches over it exhaustively.
type ConnectionMethod int

const (
	// MethodEmbedded is the local SQLite database, the method of last resort.
	MethodEmbedded ConnectionMethod = iota
	// MethodDirectSQL is a direct Postgres connection to the managed service.
	MethodDirectSQL
	// MethodREST is the PostgREST data API of the managed service.
	MethodREST
)

// String implements fmt.Stringer.
func (m ConnectionMethod) String() string {
	switch m {
	case MethodEmbedded:
		return "embedded"
	case MethodDirectSQL:
		return "direct-sql"
	case MethodREST:
		return "rest"
	default:
		return "unknown"
	}
}
