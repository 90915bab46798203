package health

import "context"

// DBPinger checks KV database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// Checker checks availability of an external backend (embedding provider, vector store).
type Checker interface {
	HealthCheck(ctx context.Context) error
}
