package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/iPranay05/Skill-Prob-sub002/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// IdempotencyStore remembers which enrollment a client idempotency key
// produced.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

type RedisIdempotencyStore struct {
	client *redis.Client
}

func NewRedisIdempotencyStore(client *redis.Client) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client}
}

func idemKey(key string) string {
	return "idem:enroll:" + key
}

// Get returns "" when the key is unknown.
func (s *RedisIdempotencyStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, idemKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// Set keeps the first value written for a key.
func (s *RedisIdempotencyStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.SetNX(ctx, idemKey(key), value, ttl).Err()
}

// CachedCourseRepository serves mentor lookups from Redis. Seat counters are
// always read from the underlying repository.
type CachedCourseRepository struct {
	CourseRepository
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedCourseRepository(inner CourseRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedCourseRepository {
	return &CachedCourseRepository{CourseRepository: inner, client: client, ttl: ttl, logger: logger}
}

func mentorKey(courseID uuid.UUID) string {
	return "course:mentor:" + courseID.String()
}

func (r *CachedCourseRepository) FindMentorID(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	cached, err := r.client.Get(ctx, mentorKey(id)).Result()
	if err == nil {
		if mentorID, parseErr := uuid.Parse(cached); parseErr == nil {
			return mentorID, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		r.logger.Warn("course cache read failed", zap.String("course_id", id.String()), zap.Error(err))
	}

	mentorID, err := r.CourseRepository.FindMentorID(ctx, id)
	if err != nil {
		return uuid.Nil, err
	}
	if err := r.client.Set(ctx, mentorKey(id), mentorID.String(), r.ttl).Err(); err != nil {
		r.logger.Warn("course cache write failed", zap.String("course_id", id.String()), zap.Error(err))
	}
	return mentorID, nil
}

// FindByID refreshes the mentor cache as a side effect.
func (r *CachedCourseRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	course, err := r.CourseRepository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	_ = r.client.Set(ctx, mentorKey(id), course.MentorID.String(), r.ttl).Err()
	return course, nil
}
