package gowasm

import "github.com/vertexdlt/gowasm/vm"

// Config collects the resource bounds and host wiring a Context is
// created with, built up via functional options (the teacher's
// constructor-argument style, `vm.NewVM(code, resolver)`, generalized the
// way wazero's RuntimeConfig and k6's Config do it for a larger option
// surface).
type Config struct {
	maxValueStackDepth int
	maxCallDepth       int
	memoryLimitPages   uint32
	gasLimit           uint64
	gasPolicy          vm.GasPolicy
	hosts              vm.HostModules
}

// Option configures a Config.
type Option func(*Config)

// WithMaxValueStackDepth bounds the operand stack depth one Context may
// grow to (spec.md §5 "host limit on value stack depth").
func WithMaxValueStackDepth(n int) Option {
	return func(c *Config) { c.maxValueStackDepth = n }
}

// WithMaxCallDepth bounds call-frame nesting (spec.md §5 "host limit on
// call depth").
func WithMaxCallDepth(n int) Option {
	return func(c *Config) { c.maxCallDepth = n }
}

// WithMemoryLimitPages caps linear memory growth below whatever maximum
// the module itself declares (spec.md §5 "host limit on memory.grow"): a
// memory.grow request that would exceed this cap fails the same way one
// exceeding the module's own declared maximum does, without trapping.
func WithMemoryLimitPages(pages uint32) Option {
	return func(c *Config) { c.memoryLimitPages = pages }
}

// WithGasPolicy installs a cost model charged per executed instruction
// and per page grown; WithGasLimit sets the budget it is charged against.
// Together these are the generalized form of the teacher's vm/gas.go
// GasPolicy, now reachable from the embedding API instead of only from
// package vm directly.
func WithGasPolicy(policy vm.GasPolicy) Option {
	return func(c *Config) { c.gasPolicy = policy }
}

func WithGasLimit(limit uint64) Option {
	return func(c *Config) { c.gasLimit = limit }
}

// WithHostModule registers a HostModule under the given import module
// name, resolved against (module, field) import pairs at Context creation
// time (spec.md §9 Open Question: imports accepted at decode, trapping at
// call only if still unresolved).
func WithHostModule(name string, hm vm.HostModule) Option {
	return func(c *Config) {
		if c.hosts == nil {
			c.hosts = vm.HostModules{}
		}
		c.hosts[name] = hm
	}
}

func buildConfig(opts []Option) Config {
	var c Config
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (c Config) limits() vm.Limits {
	return vm.Limits{
		MaxValueStackDepth: c.maxValueStackDepth,
		MaxCallDepth:       c.maxCallDepth,
		GasLimit:           c.gasLimit,
		GasPolicy:          c.gasPolicy,
		HostMaxPages:       c.memoryLimitPages,
	}
}
