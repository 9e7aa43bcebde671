package scheduler

// ExportedExecute exposes the private execute method for external tests.
func (s *Scheduler) ExportedExecute(name string) {
	s.execute(name)
}
