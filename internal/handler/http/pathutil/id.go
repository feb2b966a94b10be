package pathutil

import (
	"errors"
	"strconv"
)

// ErrInvalidID is returned for an entry ID that is not a positive integer.
var ErrInvalidID = errors.New("invalid id")

// ParseID parses a positive int64 path segment, such as r.PathValue("id").
func ParseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidID
	}
	return id, nil
}
