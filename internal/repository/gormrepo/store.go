package gormrepo

import (
	"context"

	"github.com/Mahaan-Amr/hs6tools-sub003/internal/repository"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultTxAttempts = 3

type store struct {
	db        *gorm.DB
	retryable func(error) bool
	attempts  int
	inTx      bool
}

// Option tweaks a store built by NewStore.
type Option func(*store)

// WithRetry replays a whole transaction up to attempts times while
// retryable classifies its failure as a transient lock conflict.
func WithRetry(attempts int, retryable func(error) bool) Option {
	return func(s *store) {
		s.attempts = attempts
		s.retryable = retryable
	}
}

func NewStore(db *gorm.DB, opts ...Option) repository.Store {
	s := &store{
		db:        db,
		attempts:  defaultTxAttempts,
		retryable: func(error) bool { return false },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *store) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	var err error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(&store{db: tx, retryable: s.retryable, attempts: 1, inTx: true})
		})
		if err == nil || !s.retryable(err) {
			return err
		}
		log.Ctx(ctx).Warn().Err(err).Int("attempt", attempt).Msg("transaction aborted by lock conflict, retrying")
	}
	return err
}

func (s *store) conn(ctx context.Context, forUpdate bool) *gorm.DB {
	q := s.db.WithContext(ctx)
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}

var _ repository.Store = (*store)(nil)
