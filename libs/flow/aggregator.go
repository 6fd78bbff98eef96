package flow

import (
	"sync"
	"time"
)

// Aggregator owns the live set of flow buckets across all symbols and
// option types. Mutation of the bucket map happens only under mu; callers
// must not hold mu across a database write.
type Aggregator struct {
	mu      sync.Mutex
	buckets map[bucketKey]*Bucket

	QuotesProcessed int64
	BucketsFlushed  int64
}

// NewAggregator constructs an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{buckets: make(map[bucketKey]*Bucket)}
}

// AddQuote routes q into its 5-minute bucket, creating the bucket on first
// use. Quotes with non-positive volume are ignored per spec.
func (a *Aggregator) AddQuote(q Quote) {
	if q.Volume <= 0 {
		return
	}

	key := bucketKey{symbol: q.Symbol, optionType: q.OptionType, bucketStart: bucketTimestamp(q.Timestamp)}

	a.mu.Lock()
	bucket, ok := a.buckets[key]
	if !ok {
		bucket = newBucket(q.Symbol, q.OptionType, key.bucketStart)
		a.buckets[key] = bucket
	}
	bucket.addQuote(q)
	a.QuotesProcessed++
	a.mu.Unlock()
}

// FlushDue moves every bucket whose BucketStart is strictly before the
// current 5-minute boundary (computed from now) out of the live map and
// returns their finalized rows. The lock is held only long enough to move
// pointers out of the map; row derivation and any I/O happen outside it.
func (a *Aggregator) FlushDue(now time.Time) []Row {
	currentBucket := bucketTimestamp(now)

	due := a.drain(func(b *Bucket) bool {
		return b.BucketStart.Before(currentBucket)
	})

	return toRows(due)
}

// FlushAll unconditionally drains every live bucket, for use on shutdown.
func (a *Aggregator) FlushAll() []Row {
	due := a.drain(func(*Bucket) bool { return true })
	return toRows(due)
}

// ActiveBuckets reports how many buckets are currently live, for stats
// logging.
func (a *Aggregator) ActiveBuckets() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buckets)
}

func (a *Aggregator) drain(shouldFlush func(*Bucket) bool) []*Bucket {
	var due []*Bucket

	a.mu.Lock()
	for key, bucket := range a.buckets {
		if shouldFlush(bucket) {
			due = append(due, bucket)
			delete(a.buckets, key)
		}
	}
	a.BucketsFlushed += int64(len(due))
	a.mu.Unlock()

	return due
}

func toRows(buckets []*Bucket) []Row {
	if len(buckets) == 0 {
		return nil
	}
	rows := make([]Row, 0, len(buckets))
	for _, b := range buckets {
		rows = append(rows, b.toRow())
	}
	return rows
}
