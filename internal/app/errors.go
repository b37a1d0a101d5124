package app

import (
	"errors"
	"strings"
)

var (
	ErrForbidden     = errors.New("forbidden")
	ErrRunInProgress = errors.New("recurrence run already in progress")
)

// ValidationError lists every field problem found in one request body.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Problems, "; ")
}

// validator accumulates field problems.
type validator struct {
	problems []string
}

func (v *validator) add(problem string) {
	v.problems = append(v.problems, problem)
}

func (v *validator) check(ok bool, problem string) {
	if !ok {
		v.add(problem)
	}
}

func (v *validator) err() error {
	if len(v.problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: v.problems}
}
