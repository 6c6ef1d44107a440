package worker

import "sync"

// inFlight is the set of paths currently owned by a worker. A path offered
// while held is not dispatched again; instead the holder is asked to run it
// once more after its current outcome is reported.
type inFlight struct {
	mu    sync.Mutex
	paths map[string]*slot
}

type slot struct {
	rerun bool
}

func newInFlight() *inFlight {
	return &inFlight{paths: make(map[string]*slot)}
}

// TryAcquire claims path. It returns false and records a rerun request
// when the path is already held.
func (s *inFlight) TryAcquire(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if held, ok := s.paths[path]; ok {
		held.rerun = true
		return false
	}
	s.paths[path] = &slot{}
	return true
}

// Finish is called by the holder after reporting an outcome. When a rerun
// was requested the path stays held, the request is cleared and true is
// returned; otherwise the path is released.
func (s *inFlight) Finish(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	held, ok := s.paths[path]
	if !ok {
		return false
	}
	if held.rerun {
		held.rerun = false
		return true
	}
	delete(s.paths, path)
	return false
}

// Release drops path regardless of pending reruns
func (s *inFlight) Release(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.paths, path)
}

// Len returns the number of held paths
func (s *inFlight) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.paths)
}
