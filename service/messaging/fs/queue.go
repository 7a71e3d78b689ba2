package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/storage"
	"github.com/viant/agentmesh/service/messaging"
)

var errProcessed = errors.New("fs: message already processed")

// Config holds configuration for the file-backed queue.
type Config struct {
	BasePath     string        `yaml:"basePath"`
	MaxRetries   int           `yaml:"maxRetries"`
	PollInterval time.Duration `yaml:"pollInterval"`
	// KeepCompleted retains acknowledged messages under done/ as a journal.
	KeepCompleted bool `yaml:"keepCompleted"`
}

// DefaultConfig returns a default queue configuration rooted at basePath.
func DefaultConfig(basePath string) Config {
	return Config{
		BasePath:      basePath,
		MaxRetries:    3,
		PollInterval:  50 * time.Millisecond,
		KeepCompleted: true,
	}
}

type record[T any] struct {
	ID        string    `json:"id"`
	Data      T         `json:"data"`
	Error     string    `json:"error,omitempty"`
	Retries   int       `json:"retries"`
	CreatedAt time.Time `json:"createdAt"`
}

// Message is a consumed queue entry; its file lives under processing/ until
// it is acknowledged.
type Message[T any] struct {
	record[T]
	name  string
	queue *Queue[T]
	once  sync.Once
}

func (m *Message[T]) T() *T {
	return &m.Data
}

// Ack moves the message to done/, or drops it when KeepCompleted is off.
func (m *Message[T]) Ack() error {
	err := errProcessed
	m.once.Do(func() {
		err = m.queue.settle(context.Background(), m, m.queue.doneDir)
	})
	return err
}

// Nack returns the message to pending/ until MaxRetries is exhausted, then
// moves it to dlq/.
func (m *Message[T]) Nack(cause error) error {
	err := errProcessed
	m.once.Do(func() {
		m.Retries++
		if cause != nil {
			m.Error = cause.Error()
		}
		dest := m.queue.pendingDir
		if m.Retries > m.queue.config.MaxRetries {
			dest = m.queue.dlqDir
		}
		err = m.queue.settle(context.Background(), m, dest)
	})
	return err
}

// Queue implements messaging.Queue on top of any afs storage (file://, mem://, s3://...).
type Queue[T any] struct {
	fs            afs.Service
	config        Config
	pendingDir    string
	processingDir string
	doneDir       string
	dlqDir        string
	mu            sync.Mutex
}

// NewQueue creates the queue directories and returns the queue.
func NewQueue[T any](fs afs.Service, config Config) (*Queue[T], error) {
	if config.BasePath == "" {
		return nil, fmt.Errorf("fs queue: base path cannot be empty")
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig("").PollInterval
	}
	q := &Queue[T]{
		fs:            fs,
		config:        config,
		pendingDir:    path.Join(config.BasePath, "pending"),
		processingDir: path.Join(config.BasePath, "processing"),
		doneDir:       path.Join(config.BasePath, "done"),
		dlqDir:        path.Join(config.BasePath, "dlq"),
	}
	ctx := context.Background()
	for _, dir := range []string{q.pendingDir, q.processingDir, q.doneDir, q.dlqDir} {
		if exists, _ := fs.Exists(ctx, dir); exists {
			continue
		}
		if err := fs.Create(ctx, dir, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("fs queue: failed to create %s: %w", dir, err)
		}
	}
	return q, nil
}

// Publish writes the payload to pending/. File names sort in publish order.
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	now := time.Now()
	rec := record[T]{ID: uuid.New().String(), Data: *t, CreatedAt: now}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("fs queue: failed to marshal message: %w", err)
	}
	name := fmt.Sprintf("%020d-%s.json", now.UnixNano(), rec.ID)
	return q.fs.Upload(ctx, path.Join(q.pendingDir, name), file.DefaultFileOsMode, bytes.NewReader(data))
}

// Consume blocks until a pending message is available or ctx is done.
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	for {
		msg, err := q.claim(ctx)
		if err != nil || msg != nil {
			return msg, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(q.config.PollInterval):
		}
	}
}

func (q *Queue[T]) claim(ctx context.Context) (*Message[T], error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	objects, err := q.list(ctx, q.pendingDir)
	if err != nil || len(objects) == 0 {
		return nil, err
	}
	obj := objects[0]
	data, err := q.fs.DownloadWithURL(ctx, obj.URL())
	if err != nil {
		return nil, fmt.Errorf("fs queue: failed to read %s: %w", obj.URL(), err)
	}
	msg := &Message[T]{name: obj.Name(), queue: q}
	if err = json.Unmarshal(data, &msg.record); err != nil {
		_ = q.fs.Move(ctx, obj.URL(), path.Join(q.dlqDir, obj.Name()))
		return nil, fmt.Errorf("fs queue: invalid message %s: %w", obj.Name(), err)
	}
	if err = q.fs.Move(ctx, obj.URL(), path.Join(q.processingDir, obj.Name())); err != nil {
		return nil, fmt.Errorf("fs queue: failed to claim %s: %w", obj.Name(), err)
	}
	return msg, nil
}

func (q *Queue[T]) settle(ctx context.Context, m *Message[T], destDir string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	processing := path.Join(q.processingDir, m.name)
	if destDir == q.doneDir && !q.config.KeepCompleted {
		return q.fs.Delete(ctx, processing)
	}
	data, err := json.Marshal(m.record)
	if err != nil {
		return fmt.Errorf("fs queue: failed to marshal message: %w", err)
	}
	if err = q.fs.Upload(ctx, path.Join(destDir, m.name), file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("fs queue: failed to write %s: %w", m.name, err)
	}
	return q.fs.Delete(ctx, processing)
}

func (q *Queue[T]) list(ctx context.Context, dir string) ([]storage.Object, error) {
	objects, err := q.fs.List(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("fs queue: failed to list %s: %w", dir, err)
	}
	var ret []storage.Object
	for _, obj := range objects {
		if !obj.IsDir() && strings.HasSuffix(obj.Name(), ".json") {
			ret = append(ret, obj)
		}
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Name() < ret[j].Name() })
	return ret, nil
}

// Count returns the number of messages in pending/, done/ and dlq/.
func (q *Queue[T]) Count(ctx context.Context) (pending, done, dead int, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	counts := make([]int, 3)
	for i, dir := range []string{q.pendingDir, q.doneDir, q.dlqDir} {
		objects, err := q.list(ctx, dir)
		if err != nil {
			return 0, 0, 0, err
		}
		counts[i] = len(objects)
	}
	return counts[0], counts[1], counts[2], nil
}

var _ messaging.Queue[any] = (*Queue[any])(nil)
