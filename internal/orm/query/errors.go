package query

import "errors"

var (
	// ErrEmptyResult signals that a criterion cannot match any row, so no
	// statement should run and the result is empty
	ErrEmptyResult = errors.New("criteria cannot match, result is empty")

	// ErrUnsupportedCriterion is returned for criterion shapes other than a
	// scalar, a list or nil
	ErrUnsupportedCriterion = errors.New("filter criteria not implemented")

	// ErrUnsupportedLiteral is returned when a value cannot be rendered as
	// the requested literal type
	ErrUnsupportedLiteral = errors.New("unsupported literal")

	// ErrMissingKey is returned when a key field has no value and no criteria
	// were supplied to identify the row
	ErrMissingKey = errors.New("key field is not defined")

	// ErrNoWriteFields is returned when a write statement has nothing to write
	ErrNoWriteFields = errors.New("no defined write fields or primary keys are populated")

	// ErrUnsupportedJoin is returned for joins that cannot be rendered inline
	ErrUnsupportedJoin = errors.New("unsupported join")
)

// IsEmptyResult checks if an error signals an empty result
func IsEmptyResult(err error) bool {
	return errors.Is(err, ErrEmptyResult)
}
