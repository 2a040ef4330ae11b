package webui

import (
	"github.com/opsagent/platform/core/scheduler"
	"github.com/opsagent/platform/core/sse"
)

type Config struct {
	Scheduler *scheduler.Scheduler
	Events    *sse.Manager
	ApiKeys   []string
}

type Option func(*Config)

func WithScheduler(s *scheduler.Scheduler) Option {
	return func(c *Config) {
		c.Scheduler = s
	}
}

func WithEvents(m *sse.Manager) Option {
	return func(c *Config) {
		c.Events = m
	}
}

func WithApiKeys(keys []string) Option {
	return func(c *Config) {
		c.ApiKeys = keys
	}
}

func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

func NewConfig(opts ...Option) *Config {
	c := &Config{}
	c.Apply(opts...)
	return c
}
