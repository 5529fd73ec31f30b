package cmd

import (
	"context"

	log "github.com/sirupsen/logrus"
)

type shutdownStep struct {
	name string
	fn   func(ctx context.Context) error
}

// shutdownStack releases started components in reverse start order
type shutdownStack struct {
	steps []shutdownStep
	done  []string
}

func (s *shutdownStack) push(name string, fn func(ctx context.Context) error) {
	s.steps = append(s.steps, shutdownStep{name: name, fn: fn})
}

// shutdown runs every step once, logging failures without stopping
func (s *shutdownStack) shutdown(ctx context.Context) {
	for len(s.steps) > 0 {
		step := s.steps[len(s.steps)-1]
		s.steps = s.steps[:len(s.steps)-1]

		if err := step.fn(ctx); err != nil {
			log.WithError(err).WithField("component", step.name).Error("Error during shutdown")
		}
		s.done = append(s.done, step.name)
	}
}
