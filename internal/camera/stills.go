package camera

import (
	"sync"

	"gocv.io/x/gocv"
)

// Stills replays a fixed list of frames, optionally looping forever.
type Stills struct {
	name string
	loop bool

	mu     sync.Mutex
	frames []gocv.Mat
	next   int
}

// NewStills takes ownership of frames; they are closed by Close.
func NewStills(name string, frames []gocv.Mat, loop bool) *Stills {
	return &Stills{name: name, frames: frames, loop: loop}
}

func (s *Stills) Name() string { return s.name }

// Read copies the next frame into dst. Without looping it fails once every
// frame has been delivered.
func (s *Stills) Read(dst *gocv.Mat) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.frames) == 0 {
		return false
	}
	if s.next >= len(s.frames) {
		if !s.loop {
			return false
		}
		s.next = 0
	}
	if err := s.frames[s.next].CopyTo(dst); err != nil {
		return false
	}
	s.next++
	return true
}

func (s *Stills) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range s.frames {
		f.Close()
	}
	s.frames = nil
	return nil
}
