package ports

// Telemetry is the observability collaborator. Implementations are
// best-effort; callers swallow errors rather than letting telemetry
// affect correctness.
type Telemetry interface {
	SetGauge(name string, value float64) error
}
