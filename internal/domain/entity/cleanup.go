package entity

import "fmt"

// CleanupStats accumulates the outcome of one cleanup operation.
// Individual step failures land in Errors; they never abort the run.
type CleanupStats struct {
	ViewportsRemoved  int
	ListenersRemoved  int
	SyncGroupsRemoved int
	Errors            []string
}

// AddError records a step failure.
func (s *CleanupStats) AddError(step string, err error) {
	if err == nil {
		return
	}
	s.Errors = append(s.Errors, fmt.Sprintf("%s: %v", step, err))
}

// Merge folds another accumulator into this one.
func (s *CleanupStats) Merge(other CleanupStats) {
	s.ViewportsRemoved += other.ViewportsRemoved
	s.ListenersRemoved += other.ListenersRemoved
	s.SyncGroupsRemoved += other.SyncGroupsRemoved
	s.Errors = append(s.Errors, other.Errors...)
}
