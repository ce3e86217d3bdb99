package redis

import (
	"context"

	"github.com/renoted/renoted/internal/db"
)

// SAdd adds members to a set.
func (s *Store) SAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	cmd := s.b().Sadd().Key(key).Member(members...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpSAdd, Err: err}
	}
	return nil
}

// SRem removes members from a set.
func (s *Store) SRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	cmd := s.b().Srem().Key(key).Member(members...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpSRem, Err: err}
	}
	return nil
}

// SMembers returns all members of a set.
func (s *Store) SMembers(ctx context.Context, key string) ([]string, error) {
	cmd := s.b().Smembers().Key(key).Build()
	members, err := s.do(ctx, cmd).AsStrSlice()
	if err != nil {
		return nil, &db.Error{Op: db.OpSMembers, Err: err}
	}
	return members, nil
}

// SIsMember checks set membership.
func (s *Store) SIsMember(ctx context.Context, key, member string) (bool, error) {
	cmd := s.b().Sismember().Key(key).Member(member).Build()
	ok, err := s.do(ctx, cmd).AsBool()
	if err != nil {
		return false, &db.Error{Op: db.OpSIsMember, Err: err}
	}
	return ok, nil
}
