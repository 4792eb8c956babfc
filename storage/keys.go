package storage

import (
	"fmt"
	"math"
	"net/url"
	"sync/atomic"
	"time"
)

var lastTimestamp int64

// nextTimestamp returns a strictly increasing nanosecond timestamp.
func nextTimestamp() int64 {
	for {
		now := time.Now().UnixNano()
		last := atomic.LoadInt64(&lastTimestamp)
		if now <= last {
			now = last + 1
		}
		if atomic.CompareAndSwapInt64(&lastTimestamp, last, now) {
			return now
		}
	}
}

// rowKeyFor inverts ts so that ascending RowKey order lists the newest record first.
func rowKeyFor(ts int64) string {
	return fmt.Sprintf("%019d", math.MaxInt64-ts)
}

func nextRowKey() string {
	return rowKeyFor(nextTimestamp())
}

// partitionKey escapes characters Azure Tables rejects in keys (/ \ # ?).
// Quotes are escaped too, so the key is safe inside an OData string literal.
func partitionKey(owner string) string {
	return url.PathEscape(owner)
}

func partitionFilter(owner string) string {
	return "PartitionKey eq '" + partitionKey(owner) + "'"
}
