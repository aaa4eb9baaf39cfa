// Package backend manages daemon profiles and switches the live streams between them.
package backend

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vshulcz/Clashpulse/internal/domain"
	"github.com/vshulcz/Clashpulse/internal/ports"
)

// Streams is satisfied by *stream.Registry.
type Streams interface {
	Subscribe(topic domain.Topic, target domain.Target) error
	Unsubscribe(topic domain.Topic) error
	UnsubscribeAll()
	WaitRetired(ctx context.Context) error
}

// VersionChecker checks that a target answers, returning the daemon version.
type VersionChecker interface {
	CheckVersion(ctx context.Context, target domain.Target) (string, error)
}

type Option func(*Service)

// WithPersister snapshots the profile list after every change.
func WithPersister(p ports.Persister) Option {
	return func(s *Service) { s.persister = p }
}

func WithVersionChecker(p VersionChecker) Option {
	return func(s *Service) { s.checker = p }
}

// OnSwitch registers a hook run with the new target after the old streams
// have exited and before the new ones start.
func OnSwitch(fn func(domain.Target)) Option {
	return func(s *Service) {
		if fn != nil {
			s.onSwitch = append(s.onSwitch, fn)
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

type Service struct {
	repo      ports.BackendRepo
	streams   Streams
	persister ports.Persister
	checker   VersionChecker
	logger    *zap.Logger
	now       func() time.Time
	topics    []domain.Topic
	onSwitch  []func(domain.Target)
	mu        sync.Mutex
}

// New returns a service that subscribes topics on the active backend.
func New(repo ports.BackendRepo, streams Streams, topics []domain.Topic, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		streams: streams,
		topics:  append([]domain.Topic(nil), topics...),
		logger:  zap.NewNop(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *Service) List(ctx context.Context) ([]domain.Backend, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.Backend, error) {
	return s.repo.Get(ctx, id)
}

// Active returns the active profile or domain.ErrNoActiveBackend.
func (s *Service) Active(ctx context.Context) (domain.Backend, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return domain.Backend{}, err
	}
	for _, b := range list {
		if b.Active {
			return b, nil
		}
	}
	return domain.Backend{}, domain.ErrNoActiveBackend
}

// Add stores a new profile. The first profile becomes active.
func (s *Service) Add(ctx context.Context, label string, target domain.Target) (domain.Backend, error) {
	if err := target.Validate(); err != nil {
		return domain.Backend{}, err
	}
	list, err := s.repo.List(ctx)
	if err != nil {
		return domain.Backend{}, err
	}
	now := s.now()
	b := domain.Backend{
		ID:        uuid.New(),
		Label:     labelFor(label, target),
		Target:    target,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Save(ctx, b); err != nil {
		return domain.Backend{}, fmt.Errorf("save backend: %w", err)
	}
	s.logger.Info("backend added", zap.Stringer("id", b.ID), zap.Stringer("target", target))

	if len(list) == 0 {
		if err := s.Activate(ctx, b.ID); err != nil {
			return b, err
		}
		b.Active = true
		return b, nil
	}
	s.persist(ctx)
	return b, nil
}

// Update changes label and target. Editing the active profile reconnects.
func (s *Service) Update(ctx context.Context, id uuid.UUID, label string, target domain.Target) (domain.Backend, error) {
	if err := target.Validate(); err != nil {
		return domain.Backend{}, err
	}
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Backend{}, err
	}
	b.Label = labelFor(label, target)
	b.Target = target
	b.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, b); err != nil {
		return domain.Backend{}, fmt.Errorf("save backend: %w", err)
	}
	if b.Active {
		return b, s.Activate(ctx, id)
	}
	s.persist(ctx)
	return b, nil
}

// Remove deletes a profile. Removing the active one stops all streams.
func (s *Service) Remove(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if b.Active {
		s.streams.UnsubscribeAll()
		s.logger.Info("active backend removed, streams stopped", zap.Stringer("id", id))
	}
	s.persist(ctx)
	return nil
}

// Activate makes id the active profile: every stream is torn down and waited
// for, switch hooks run, then each topic is subscribed to the new target.
func (s *Service) Activate(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.SetActive(ctx, id); err != nil {
		return fmt.Errorf("activate backend: %w", err)
	}

	s.streams.UnsubscribeAll()
	if err := s.streams.WaitRetired(ctx); err != nil {
		s.logger.Warn("old streams still closing", zap.Error(err))
	}
	for _, fn := range s.onSwitch {
		fn(b.Target)
	}
	var errs []error
	for _, t := range s.topics {
		if err := s.streams.Subscribe(t, b.Target); err != nil {
			errs = append(errs, fmt.Errorf("subscribe %s: %w", t, err))
		}
	}
	s.logger.Info("backend activated",
		zap.Stringer("id", b.ID), zap.String("label", b.Label),
		zap.Stringer("target", b.Target), zap.Int("topics", len(s.topics)))
	s.persist(ctx)
	return errors.Join(errs...)
}

// Subscribe streams topic from the active profile and keeps it in the set
// that Activate resubscribes.
func (s *Service) Subscribe(ctx context.Context, topic domain.Topic) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.Active(ctx)
	if err != nil {
		return err
	}
	if err := s.streams.Subscribe(topic, b.Target); err != nil {
		return err
	}
	if !slices.Contains(s.topics, topic) {
		s.topics = append(s.topics, topic)
	}
	return nil
}

// Unsubscribe stops topic and drops it from the resubscribed set.
func (s *Service) Unsubscribe(topic domain.Topic) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.streams.Unsubscribe(topic); err != nil {
		return err
	}
	s.topics = slices.DeleteFunc(s.topics, func(t domain.Topic) bool { return t == topic })
	return nil
}

// Topics returns the set Activate subscribes.
func (s *Service) Topics() []domain.Topic {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.topics)
}

// Start activates the stored active profile, or the oldest one, or creates
// a profile from fallback when none exist.
func (s *Service) Start(ctx context.Context, fallback domain.Target) error {
	list, err := s.repo.List(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		_, err := s.Add(ctx, "", fallback)
		return err
	}
	pick := list[0]
	for _, b := range list {
		if b.Active {
			pick = b
			break
		}
	}
	return s.Activate(ctx, pick.ID)
}

// Test checks target without storing or activating it.
func (s *Service) Test(ctx context.Context, target domain.Target) (string, error) {
	if err := target.Validate(); err != nil {
		return "", err
	}
	if s.checker == nil {
		return "", errors.New("no version checker configured")
	}
	return s.checker.CheckVersion(ctx, target)
}

func (s *Service) persist(ctx context.Context) {
	if s.persister == nil {
		return
	}
	list, err := s.repo.List(ctx)
	if err == nil {
		err = s.persister.Save(ctx, list)
	}
	if err != nil {
		s.logger.Warn("persist backends failed", zap.Error(err))
	}
}

func labelFor(label string, t domain.Target) string {
	if l := strings.TrimSpace(label); l != "" {
		return l
	}
	return t.String()
}
