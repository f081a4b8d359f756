// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package fiberio

import (
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Config holds the resolved construction parameters for a Scheduler or
// IOManager. Use Option values with NewScheduler/NewIOManager to build one;
// the zero value is never used directly.
type Config struct {
	name       string
	workers    int
	useCaller  bool
	stackSize  int
	maxTimeout time.Duration
}

// Lookup resolves a named configuration value against this Config. It is
// the single entry point replacing both variants of the source's
// Config::Lookup/Config::Lockup (an old typo'd duplicate); fiberio keeps
// exactly one lookup method rather than reintroducing the ambiguity.
//
// Recognized keys: "fiber.stack_size", "scheduler.name",
// "scheduler.max_timeout". Unknown keys return (nil, false).
func (c *Config) Lookup(key string) (any, bool) {
	switch key {
	case "fiber.stack_size":
		return c.stackSize, true
	case "scheduler.name":
		return c.name, true
	case "scheduler.max_timeout":
		return c.maxTimeout, true
	default:
		return nil, false
	}
}

// Option configures a Scheduler/IOManager at construction time.
type Option interface {
	apply(*Config)
}

type optionFunc func(*Config)

func (f optionFunc) apply(c *Config) { f(c) }

// WithWorkers sets the worker thread count (spec §4.2 Construct's
// thread_count). Default 1.
func WithWorkers(n int) Option {
	return optionFunc(func(c *Config) {
		if n > 0 {
			c.workers = n
		}
	})
}

// WithUseCaller reserves one logical worker slot for the constructing
// goroutine, so Schedule is usable before Start (spec §4.2 "use_caller").
func WithUseCaller(useCaller bool) Option {
	return optionFunc(func(c *Config) { c.useCaller = useCaller })
}

// WithStackSize sets the per-fiber stack-size hint in bytes (spec §6
// fiber.stack_size). Default DefaultStackSize (128 KiB).
func WithStackSize(n int) Option {
	return optionFunc(func(c *Config) {
		if n > 0 {
			c.stackSize = n
		}
	})
}

// WithName sets the scheduler's diagnostic name, surfaced in lifecycle log
// lines and in Scheduler.String() (sylar::Scheduler(name) in the original
// source). Panic and system-error log lines do not carry it.
func WithName(name string) Option {
	return optionFunc(func(c *Config) {
		if name != "" {
			c.name = name
		}
	})
}

// WithMaxTimeout caps the epoll_wait timeout an IOManager's idle fiber will
// ever request, even if the earliest timer deadline is further away (spec
// §4.3 "MAX_TIMEOUT = 5000ms"). Ignored by the base Scheduler. Default 5s.
func WithMaxTimeout(d time.Duration) Option {
	return optionFunc(func(c *Config) {
		if d > 0 {
			c.maxTimeout = d
		}
	})
}

// WithLogger installs l as the process-wide structured logger for
// background errors. Equivalent to calling SetLogger(l) directly; provided
// as an Option for symmetry with the rest of the construction API.
func WithLogger(l *logiface.Logger[*stumpy.Event]) Option {
	return optionFunc(func(c *Config) {
		if l != nil {
			SetLogger(l)
		}
	})
}

func resolveConfig(opts []Option) *Config {
	c := &Config{
		name:       "fiberio",
		workers:    1,
		stackSize:  DefaultStackSize,
		maxTimeout: 5 * time.Second,
	}
	for _, o := range opts {
		if o == nil {
			continue
		}
		o.apply(c)
	}
	return c
}
