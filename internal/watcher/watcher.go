// Package watcher reports file system changes below a directory tree.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const (
	defaultDebounceConstant            = time.Second
	watcherCreateErrorTemplateConstant = "unable to create file watcher: %w"
	watchPathErrorTemplateConstant     = "unable to watch %s: %w"
	watchedDirectoryMessageConstant    = "Watching directory"
	watcherFailureMessageConstant      = "File watcher reported an error"
	pathFieldNameConstant              = "path"
)

// ErrWatchRootNotDirectory indicates the requested root is not a directory.
var ErrWatchRootNotDirectory = errors.New("watch root is not a directory")

// Event is one observed change.
type Event struct {
	Path      string
	Operation string
}

// String renders the event for display.
func (event Event) String() string {
	return fmt.Sprintf("%s %s", event.Operation, event.Path)
}

// Options configure a Watcher.
type Options struct {
	Debounce time.Duration
	Logger   *zap.Logger
}

// Subscription is an open watch on a directory tree.
type Subscription struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *zap.Logger
}

// Open starts watching root and every directory below it.
func Open(root string, options Options) (*Subscription, error) {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	debounce := options.Debounce
	if debounce <= 0 {
		debounce = defaultDebounceConstant
	}

	notifier, createError := fsnotify.NewWatcher()
	if createError != nil {
		return nil, fmt.Errorf(watcherCreateErrorTemplateConstant, createError)
	}
	subscription := &Subscription{watcher: notifier, debounce: debounce, logger: logger}
	if addError := subscription.addTree(root); addError != nil {
		_ = notifier.Close()
		return nil, addError
	}
	return subscription, nil
}

// Close stops watching.
func (subscription *Subscription) Close() error {
	return subscription.watcher.Close()
}

// Run delivers batches of events to handler until the context is cancelled.
// Events arriving within the debounce window are grouped and deduplicated.
func (subscription *Subscription) Run(executionContext context.Context, handler func([]Event)) error {
	pending := map[Event]struct{}{}
	timer := time.NewTimer(subscription.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-executionContext.Done():
			return nil
		case notification, ok := <-subscription.watcher.Events:
			if !ok {
				return nil
			}
			if notification.Has(fsnotify.Create) {
				subscription.watchIfDirectory(notification.Name)
			}
			pending[Event{Path: notification.Name, Operation: notification.Op.String()}] = struct{}{}
			timer.Reset(subscription.debounce)
		case watchError, ok := <-subscription.watcher.Errors:
			if !ok {
				return nil
			}
			subscription.logger.Warn(watcherFailureMessageConstant, zap.Error(watchError))
		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			handler(drain(pending))
			pending = map[Event]struct{}{}
		}
	}
}

func (subscription *Subscription) addTree(root string) error {
	return filepath.WalkDir(root, func(currentPath string, entry fs.DirEntry, walkError error) error {
		if walkError != nil {
			return fmt.Errorf(watchPathErrorTemplateConstant, currentPath, walkError)
		}
		if !entry.IsDir() {
			if currentPath == root {
				return fmt.Errorf(watchPathErrorTemplateConstant, root, ErrWatchRootNotDirectory)
			}
			return nil
		}
		if addError := subscription.watcher.Add(currentPath); addError != nil {
			return fmt.Errorf(watchPathErrorTemplateConstant, currentPath, addError)
		}
		subscription.logger.Debug(watchedDirectoryMessageConstant, zap.String(pathFieldNameConstant, currentPath))
		return nil
	})
}

func (subscription *Subscription) watchIfDirectory(candidatePath string) {
	if addError := subscription.addTree(candidatePath); addError != nil && !errors.Is(addError, ErrWatchRootNotDirectory) {
		subscription.logger.Debug(watcherFailureMessageConstant, zap.String(pathFieldNameConstant, candidatePath), zap.Error(addError))
	}
}

func drain(pending map[Event]struct{}) []Event {
	events := make([]Event, 0, len(pending))
	for event := range pending {
		events = append(events, event)
	}
	sort.Slice(events, func(left int, right int) bool {
		if events[left].Path == events[right].Path {
			return events[left].Operation < events[right].Operation
		}
		return events[left].Path < events[right].Path
	})
	return events
}
