package stats

import "errors"

var (
	errInvalidHistoryBuffer = errors.New("stats: buffer must be one of times, connections, memory")
	errInvalidHistoryFrom   = errors.New("stats: from must be an ISO-8601 naive timestamp")
	errInvalidHistoryLimit  = errors.New("stats: limit must be a positive integer")
)
