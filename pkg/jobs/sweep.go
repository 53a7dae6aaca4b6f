package jobs

import "context"

// LifecycleSweep is the job that re-checks every integration with the host
// and purges the archived ones.
const LifecycleSweep = "lifecycle-sweep"

// ActiveChecker is satisfied by *lifecycle.Lifecycle.
type ActiveChecker interface {
	EnsureActive(ctx context.Context, integrationID string) (string, error)
}

// SweepTask wraps EnsureActive as a Task.
func SweepTask(checker ActiveChecker) Task {
	return func(ctx context.Context, integrationID string) error {
		_, err := checker.EnsureActive(ctx, integrationID)
		return err
	}
}
