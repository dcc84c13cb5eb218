// Package filelock guards the backup directory against concurrent writers
// from different processes, e.g. a cron-driven CLI run racing the long-lived
// server. The lock is a JSON file created with O_EXCL and refreshed by a
// heartbeat; a lock whose heartbeat stopped is considered stale and broken.
package filelock

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/stackvault/stackvault/pkg/plog"
)

const (
	staleTimeout      = 3 * time.Minute
	heartbeatInterval = 45 * time.Second
	maxAttempts       = 3
)

// lockContent is what the lock file holds.
type lockContent struct {
	PID        int       `json:"pid"`
	AppID      string    `json:"app_id"`
	LastUpdate time.Time `json:"last_update"`
}

// ErrLockActive is returned when another live process holds the lock.
type ErrLockActive struct {
	PID       int
	AppID     string
	TimeSince time.Duration
}

func (e *ErrLockActive) Error() string {
	return fmt.Sprintf("lock is held by PID %d (%s), last updated %s ago",
		e.PID, e.AppID, e.TimeSince.Truncate(time.Second))
}

// Lock is an acquired lock file. Release it when done.
type Lock struct {
	path   string
	appID  string
	cancel context.CancelFunc

	mu   sync.Mutex
	held bool
}

// Acquire takes the lock at path, breaking a stale one if its heartbeat is
// older than the stale timeout.
func Acquire(path, appID string) (*Lock, error) {
	for i := 0; i < maxAttempts; i++ {
		lock, err := tryAcquire(path, appID)
		if err == nil {
			return lock, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to access lock file: %w", err)
		}

		content, readErr := readContent(path)
		if readErr != nil {
			// Possibly mid-update by the owner; brief pause, then retry.
			time.Sleep(100 * time.Millisecond)
			continue
		}

		elapsed := time.Since(content.LastUpdate)
		if elapsed < staleTimeout {
			return nil, &ErrLockActive{PID: content.PID, AppID: content.AppID, TimeSince: elapsed}
		}

		plog.Warn("Breaking stale lock", "pid", content.PID, "age", elapsed.Truncate(time.Second))
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to remove stale lock: %w", err)
		}
	}
	return nil, fmt.Errorf("failed to acquire lock after %d attempts", maxAttempts)
}

func tryAcquire(path, appID string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	if err := writeContent(f, appID); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &Lock{path: path, appID: appID, cancel: cancel, held: true}
	go l.heartbeat(ctx)
	return l, nil
}

// heartbeat refreshes the lock's timestamp so other processes see it as live.
func (l *Lock) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_TRUNC, 0644)
			if err != nil {
				plog.Warn("Lock heartbeat failed", "path", l.path, "error", err)
				continue
			}
			if err := writeContent(f, l.appID); err != nil {
				plog.Warn("Lock heartbeat write failed", "path", l.path, "error", err)
			}
			f.Close()
		}
	}
}

// Release stops the heartbeat and removes the lock file. Safe to call twice.
func (l *Lock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held {
		return
	}
	l.held = false
	l.cancel()
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		plog.Warn("Could not remove lock file", "path", l.path, "error", err)
	}
}

func writeContent(f *os.File, appID string) error {
	return json.NewEncoder(f).Encode(lockContent{
		PID:        os.Getpid(),
		AppID:      appID,
		LastUpdate: time.Now(),
	})
}

func readContent(path string) (lockContent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return lockContent{}, err
	}
	var content lockContent
	if err := json.Unmarshal(data, &content); err != nil {
		return lockContent{}, err
	}
	return content, nil
}
