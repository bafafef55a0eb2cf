// Copyright 2026 The AppHub Authors
// SPDX-License-Identifier: Apache-2.0

// Package watcher delivers bundle arrival and departure events for a
// single directory using inotify.
//
// The watch is installed on the directory, not on individual files:
// downloads that land via atomic rename create a new inode, and a
// file-level watch on the old inode would miss the replacement. Events
// for names that do not carry the bundle extension are dropped at this
// layer so the consumer only ever sees bundle traffic.
package watcher

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

// Op describes what happened to a bundle path.
type Op int

const (
	// Created fires for IN_CREATE and IN_MOVED_TO: a bundle appeared,
	// whether written in place or renamed into the directory.
	Created Op = iota
	// Removed fires for IN_DELETE and IN_MOVED_FROM: a bundle left the
	// directory.
	Removed
)

func (op Op) String() string {
	switch op {
	case Created:
		return "created"
	case Removed:
		return "removed"
	default:
		return fmt.Sprintf("op(%d)", int(op))
	}
}

// Event is one observed change in the watched directory.
//
// When Overflow is set the kernel dropped events (IN_Q_OVERFLOW) and
// Path is empty: the consumer no longer knows what changed and should
// fall back to a full reconciliation of the directory.
type Event struct {
	Op       Op
	Path     string
	Overflow bool
}

// Watcher owns one inotify descriptor watching one directory.
type Watcher struct {
	directory string
	extension string
	logger    *slog.Logger

	events chan Event
	stop   chan struct{}
	done   chan struct{}

	closeOnce sync.Once
}

// Watch starts watching directory for files carrying extension (with
// leading dot, e.g. ".AppBox"). The returned Watcher delivers events
// on Events until Close is called.
func Watch(directory, extension string, logger *slog.Logger) (*Watcher, error) {
	fd, err := unix.InotifyInit1(unix.IN_NONBLOCK | unix.IN_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("inotify_init1: %w", err)
	}

	mask := uint32(unix.IN_CREATE | unix.IN_MOVED_TO | unix.IN_DELETE | unix.IN_MOVED_FROM)
	if _, err := unix.InotifyAddWatch(fd, directory, mask); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("inotify_add_watch on %s: %w", directory, err)
	}

	w := &Watcher{
		directory: directory,
		extension: extension,
		logger:    logger,
		events:    make(chan Event, 16),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go w.readLoop(fd)
	return w, nil
}

// Events returns the event channel. It is closed after Close, once
// the read loop has released the inotify descriptor.
func (w *Watcher) Events() <-chan Event { return w.events }

// Close stops the watcher and waits for the read loop to exit. Safe
// to call multiple times.
func (w *Watcher) Close() {
	w.closeOnce.Do(func() { close(w.stop) })
	<-w.done
}

// readLoop polls the inotify fd and forwards parsed events. poll(2)
// runs with a 100ms timeout so the goroutine stays responsive to the
// stop signal without spinning.
func (w *Watcher) readLoop(fd int) {
	defer close(w.done)
	defer close(w.events)
	defer unix.Close(fd)

	buffer := make([]byte, 4096)
	for {
		select {
		case <-w.stop:
			return
		default:
		}

		pollDescriptors := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		count, err := unix.Poll(pollDescriptors, 100)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			w.logger.Error("inotify poll failed, watcher exiting", "directory", w.directory, "error", err)
			return
		}
		if count == 0 {
			continue // timeout, check stop
		}

		bytesRead, err := unix.Read(fd, buffer)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EINTR {
				continue
			}
			w.logger.Error("inotify read failed, watcher exiting", "directory", w.directory, "error", err)
			return
		}

		for _, event := range w.parseEvents(buffer[:bytesRead]) {
			select {
			case w.events <- event:
			case <-w.stop:
				return
			}
		}
	}
}

// parseEvents walks a buffer of raw inotify events and keeps the ones
// the consumer cares about. Layout from inotify(7):
//
//	struct inotify_event {
//	    int32_t  wd;     // offset 0
//	    uint32_t mask;   // offset 4
//	    uint32_t cookie; // offset 8
//	    uint32_t len;    // offset 12
//	    char     name[]; // offset 16, null-padded to alignment
//	};
func (w *Watcher) parseEvents(buffer []byte) []Event {
	var parsed []Event
	offset := 0
	for offset+unix.SizeofInotifyEvent <= len(buffer) {
		mask := binary.NativeEndian.Uint32(buffer[offset+4 : offset+8])
		nameLength := int(binary.NativeEndian.Uint32(buffer[offset+12 : offset+16]))
		eventSize := unix.SizeofInotifyEvent + nameLength
		if offset+eventSize > len(buffer) {
			break
		}

		if mask&unix.IN_Q_OVERFLOW != 0 {
			w.logger.Warn("inotify queue overflowed, events lost", "directory", w.directory)
			parsed = append(parsed, Event{Overflow: true})
			offset += eventSize
			continue
		}

		if nameLength > 0 && mask&unix.IN_ISDIR == 0 {
			nameBytes := buffer[offset+unix.SizeofInotifyEvent : offset+eventSize]
			name := nullTerminatedString(nameBytes)
			if strings.HasSuffix(name, w.extension) {
				path := filepath.Join(w.directory, name)
				switch {
				case mask&(unix.IN_CREATE|unix.IN_MOVED_TO) != 0:
					parsed = append(parsed, Event{Op: Created, Path: path})
				case mask&(unix.IN_DELETE|unix.IN_MOVED_FROM) != 0:
					parsed = append(parsed, Event{Op: Removed, Path: path})
				}
			}
		}

		offset += eventSize
	}
	return parsed
}

// nullTerminatedString extracts a string from a null-padded byte
// slice, stopping at the first null byte.
func nullTerminatedString(data []byte) string {
	for i, b := range data {
		if b == 0 {
			return string(data[:i])
		}
	}
	return string(data)
}
