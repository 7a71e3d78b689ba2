package event

import (
	"log/slog"

	"github.com/viant/afs"
	"github.com/viant/agentmesh/service/messaging/fs"
	"github.com/viant/agentmesh/service/messaging/memory"
)

type Option func(s *Service)

// WithFsQueueConfig sets the per-queue file system configuration.
func WithFsQueueConfig(newConfig func(name string) fs.Config) Option {
	return func(s *Service) {
		s.fsQueueConfig = newConfig
	}
}

// WithMemoryQueueConfig sets the per-queue memory configuration.
func WithMemoryQueueConfig(newConfig func(name string) memory.Config) Option {
	return func(s *Service) {
		s.memQueueConfig = newConfig
	}
}

// WithFileSystem overrides the afs service backing fs queues.
func WithFileSystem(fs afs.Service) Option {
	return func(s *Service) {
		s.fs = fs
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}
