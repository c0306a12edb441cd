package interval

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/harrison/toolwindow/internal/models"
)

// Options configures ReconstructAll.
type Options struct {
	// Workers bounds the number of users reconstructed concurrently (0 = GOMAXPROCS).
	Workers int

	// Progress, if set, is called after each user completes. Calls may come from
	// several goroutines and may arrive out of order: a call with a smaller done
	// can follow one with a larger done.
	Progress func(done, total int)
}

// Result is the merged interval table for all users.
type Result struct {
	Intervals   []models.Interval `json:"intervals"`
	Users       int               `json:"users"`
	Diagnostics Diagnostics       `json:"diagnostics"`
}

// GroupByUser partitions a flat event table into per-user sequences, preserving the
// relative order of each user's events. It also returns the user ids in sorted order.
func GroupByUser(events []models.Event) (map[string][]models.Event, []string) {
	groups := make(map[string][]models.Event)
	for _, ev := range events {
		groups[ev.UserID] = append(groups[ev.UserID], ev)
	}

	users := make([]string, 0, len(groups))
	for u := range groups {
		users = append(users, u)
	}
	sort.Strings(users)

	return groups, users
}

type userOutcome struct {
	result *UserResult
	err    error
}

// ReconstructAll runs Reconstruct for every user in events on a bounded worker pool.
//
// Each user's stream is handled by exactly one worker, so shards never overlap and no
// locking is needed on the per-user results. The merged table is ordered by
// (user_id, open_ts) for reproducible output. The first contract error stops the
// remaining work and is returned.
func ReconstructAll(ctx context.Context, events []models.Event, opts Options) (*Result, error) {
	groups, users := GroupByUser(events)
	if len(users) == 0 {
		return &Result{Intervals: []models.Interval{}}, nil
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(users) {
		workers = len(users)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := make([]userOutcome, len(users))
	semaphore := make(chan struct{}, workers)

	var wg sync.WaitGroup
	var done int32
	var launchErr error

	for i, userID := range users {
		select {
		case <-ctx.Done():
			launchErr = ctx.Err()
		case semaphore <- struct{}{}:
		}
		if launchErr != nil {
			break
		}

		wg.Add(1)
		go func(i int, userID string) {
			defer wg.Done()
			defer func() { <-semaphore }()

			res, err := Reconstruct(userID, groups[userID])
			outcomes[i] = userOutcome{result: res, err: err}
			if err != nil {
				cancel()
				return
			}

			n := atomic.AddInt32(&done, 1)
			if opts.Progress != nil {
				opts.Progress(int(n), len(users))
			}
		}(i, userID)
	}

	wg.Wait()

	// Contract errors take precedence over the cancellation they caused.
	for _, o := range outcomes {
		if o.err != nil {
			return nil, fmt.Errorf("reconstruct intervals: %w", o.err)
		}
	}
	if launchErr != nil {
		return nil, fmt.Errorf("reconstruct intervals: %w", launchErr)
	}

	merged := &Result{Users: len(users)}
	total := 0
	for _, o := range outcomes {
		total += len(o.result.Intervals)
	}
	merged.Intervals = make([]models.Interval, 0, total)
	for _, o := range outcomes {
		merged.Intervals = append(merged.Intervals, o.result.Intervals...)
		merged.Diagnostics.Add(o.result.Diagnostics)
	}

	return merged, nil
}
