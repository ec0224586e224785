package controller

import (
	"strconv"
	"strings"

	"github.com/nimburion/taskmanager/pkg/server/router"
)

// Paging defaults.
const (
	DefaultOffset = 0
	DefaultLimit  = 10
)

// QueryString returns the parameter, or nil when it is absent or empty.
func QueryString(c router.Context, name string) *string {
	value := c.Query(name)
	if value == "" {
		return nil
	}
	return &value
}

// QueryInt64 parses an optional integer parameter. A malformed value fails with bad_<name>.
func QueryInt64(c router.Context, name string) (*int64, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, BadRequest("bad_"+name, "the %s %q is not an integer", name, raw).WithCause(err)
	}
	return &value, nil
}

// QueryBool parses an optional boolean parameter. A malformed value fails with bad_<name>.
func QueryBool(c router.Context, name string) (*bool, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, BadRequest("bad_"+name, "the %s %q is not a boolean", name, raw).WithCause(err)
	}
	return &value, nil
}

// QueryList returns every value of a repeated parameter.
func QueryList(c router.Context, name string) []string {
	values := c.Request().URL.Query()[name]
	if len(values) == 0 {
		return nil
	}
	return values
}

// Pagination reads offset and limit, falling back to DefaultOffset and DefaultLimit.
// Negative values fail with bad_offset or bad_limit.
func Pagination(c router.Context) (offset, limit int, err error) {
	offset, err = queryInt(c, "offset", DefaultOffset)
	if err != nil {
		return 0, 0, err
	}
	limit, err = queryInt(c, "limit", DefaultLimit)
	if err != nil {
		return 0, 0, err
	}
	return offset, limit, nil
}

func queryInt(c router.Context, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, BadRequest("bad_"+name, "the %s %q is not a non negative integer", name, raw)
	}
	return value, nil
}
