package repository

import (
	"errors"

	"github.com/lib/pq"
)

// ErrDuplicate signals that a write lost a race on a uniqueness
// constraint. Callers decide whether that is a conflict (session
// creation) or a normal outcome (repeated like).
var ErrDuplicate = errors.New("duplicate key")

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
