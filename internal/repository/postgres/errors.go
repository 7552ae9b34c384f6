package postgres

import (
	"fmt"

	"github.com/Freeeeeet/studytrack/internal/repository"
	"github.com/Freeeeeet/studytrack/internal/repository/base"
)

// writeErr оборачивает ошибку записи, нарушение уникальности отдаётся как repository.ErrDuplicate
func writeErr(op string, err error) error {
	if base.IsUniqueViolation(err, "") {
		return fmt.Errorf("%s: %w: %w", op, repository.ErrDuplicate, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
