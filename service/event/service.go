package event

import (
	"fmt"
	"log/slog"
	"path"
	"reflect"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/agentmesh/service/messaging"
	"github.com/viant/agentmesh/service/messaging/fs"
	"github.com/viant/agentmesh/service/messaging/memory"
)

// Service hands out typed event publishers backed by one queue vendor. Every
// typed event is mirrored to a shared untyped queue observed by SetListener.
type Service struct {
	publisher       *Publisher[any]
	listener        *Listener[any]
	typedPublishers map[reflect.Type]any
	typedListeners  map[reflect.Type]any
	mux             sync.RWMutex
	vendor          messaging.Vendor
	fs              afs.Service
	fsQueueConfig   func(name string) fs.Config
	memQueueConfig  func(name string) memory.Config
	logger          *slog.Logger
}

// New creates an event service. The memory vendor defaults to non-blocking
// queues so that slow consumers never stall publishers.
func New(vendor messaging.Vendor, opts ...Option) (*Service, error) {
	ret := &Service{
		vendor:          vendor,
		typedPublishers: make(map[reflect.Type]any),
		typedListeners:  make(map[reflect.Type]any),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.logger == nil {
		ret.logger = slog.Default()
	}
	ret.logger = ret.logger.With("component", "event")
	switch vendor {
	case messaging.VendorFS:
		if ret.fsQueueConfig == nil {
			return nil, fmt.Errorf("event: %s vendor requires fs queue config", vendor)
		}
		if ret.fs == nil {
			ret.fs = afs.New()
		}
	case messaging.VendorMemory:
		if ret.memQueueConfig == nil {
			ret.memQueueConfig = func(string) memory.Config {
				config := memory.DefaultConfig()
				config.DropWhenFull = true
				return config
			}
		}
	default:
		return nil, fmt.Errorf("event: unsupported queue vendor: %q", vendor)
	}
	queue, err := QueueOf[Event[any]](ret, "any")
	if err != nil {
		return nil, err
	}
	ret.publisher = NewPublisher[any](queue)
	return ret, nil
}

// FsQueueConfig returns a config factory placing each named queue under basePath.
func FsQueueConfig(basePath string) func(name string) fs.Config {
	return func(name string) fs.Config {
		return fs.DefaultConfig(path.Join(basePath, name))
	}
}

// SetListener replaces the handler observing every published event.
func (s *Service) SetListener(handler func(*Event[any])) {
	if s.listener != nil {
		s.listener.Stop()
	}
	s.listener = NewListener[any](s.publisher, handler, s.logger)
	s.listener.Start()
}

// Close stops every listener.
func (s *Service) Close() {
	if s.listener != nil {
		s.listener.Stop()
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	for key, listener := range s.typedListeners {
		listener.(interface{ Stop() }).Stop()
		delete(s.typedListeners, key)
	}
}

func QueueOf[T any](s *Service, name string) (messaging.Queue[T], error) {
	switch s.vendor {
	case messaging.VendorFS:
		return fs.NewQueue[T](s.fs, s.fsQueueConfig(name))
	case messaging.VendorMemory:
		return memory.NewQueue[T](s.memQueueConfig(name)), nil
	}
	return nil, fmt.Errorf("event: unsupported queue vendor: %q", s.vendor)
}

func keyOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// SetListenerOf replaces the handler for events of type T.
func SetListenerOf[T any](s *Service, handler func(*Event[T])) error {
	key := keyOf[T]()
	publisher, err := PublisherOf[T](s)
	if err != nil {
		return err
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	if existing, ok := s.typedListeners[key]; ok {
		existing.(*Listener[T]).Stop()
	}
	listener := NewListener[T](publisher, handler, s.logger)
	s.typedListeners[key] = listener
	listener.Start()
	return nil
}

// PublisherOf returns the publisher for type T, creating its queue on first use.
func PublisherOf[T any](s *Service) (*Publisher[T], error) {
	key := keyOf[T]()
	s.mux.RLock()
	ret, ok := s.typedPublishers[key]
	s.mux.RUnlock()
	if ok {
		return ret.(*Publisher[T]), nil
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	if ret, ok = s.typedPublishers[key]; ok {
		return ret.(*Publisher[T]), nil
	}
	queue, err := QueueOf[Event[T]](s, queueName(key))
	if err != nil {
		return nil, err
	}
	publisher := NewPublisher[T](queue)
	publisher.anyQueue = s.publisher.queue
	s.typedPublishers[key] = publisher
	return publisher, nil
}

func queueName(key reflect.Type) string {
	if key.Name() == "" {
		return key.String()
	}
	return path.Base(key.PkgPath()) + "." + key.Name()
}
