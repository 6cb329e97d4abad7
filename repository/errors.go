package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrNotFound           = errors.New("record not found")
	ErrDuplicate          = errors.New("duplicate record")
	ErrCapacityExceeded   = errors.New("course capacity exceeded")
	ErrConcurrentUpdate   = errors.New("concurrent update conflict")
	ErrUsageLimitReached  = errors.New("coupon usage limit reached")
	ErrCouponInUse        = errors.New("coupon has recorded usages")
	ErrBelowEnrollment    = errors.New("max_students below current enrollment")
	ErrStatusPrecondition = errors.New("record is not in a state that allows this transition")
	ErrOwnershipMismatch  = errors.New("record belongs to another user")
)

// Postgres SQLSTATE codes the repositories react to.
const (
	pgUniqueViolation      = "23505"
	pgCheckViolation       = "23514"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// translate maps driver and gorm errors onto the repository sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return ErrDuplicate
		case pgSerializationFailure, pgDeadlockDetected:
			return ErrConcurrentUpdate
		case pgCheckViolation:
			return ErrStatusPrecondition
		}
	}
	return err
}

// IsRetryable reports whether err is a transient optimistic-concurrency
// conflict worth retrying.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentUpdate)
}

// offset converts a 1-based page into a row offset.
func offset(page, limit int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * limit
}
