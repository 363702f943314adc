package gen

import (
	"errors"
	"fmt"
	"time"
)

var (
	// A generator ran before its dependency produced any IDs.
	ErrDependencyPoolEmpty = errors.New("dependency pool is empty")
	// A document generator was handed an empty reference pool.
	ErrReferenceIntegrityGap = errors.New("reference pool is empty")
)

// RequirePool fails with ErrDependencyPoolEmpty when the named pool is empty.
func RequirePool(name string, size int) error {
	if size == 0 {
		return fmt.Errorf("%s: %w", name, ErrDependencyPoolEmpty)
	}
	return nil
}

// RequireRefs fails with ErrReferenceIntegrityGap when the named pool is empty.
func RequireRefs(name string, size int) error {
	if size == 0 {
		return fmt.Errorf("%s: %w", name, ErrReferenceIntegrityGap)
	}
	return nil
}

// UserRef is what downstream generators need to know about a user.
type UserRef struct {
	ID         int64
	SignupDate time.Time
}

// CourseRef is what enrollments and documents need to know about a course.
type CourseRef struct {
	ID              int64
	InstructorID    int64
	DurationMinutes int
}

// PairIDs checks that a store returned exactly one ID per submitted record.
func PairIDs(entity string, ids []int64, records int) error {
	if len(ids) != records {
		return fmt.Errorf("%s: store returned %d ids for %d records", entity, len(ids), records)
	}
	return nil
}
