package hps

import (
	"fernos/internal/kerr"
	"fernos/internal/waitq"
)

// Plugin is a globally registered service keyed by a small plugin id
// (spec.md §3, §4.8). Every hook is optional: a Registry calls every hook
// of every plugin, and a plugin that embeds BasePlugin inherits its no-op
// defaults, so it only overrides the lifecycle events it cares about (e.g.
// the keyboard plugin keeps the default on_fork_proc, the shared memory
// plugin keeps the default tick).
type Plugin interface {
	// ID is this plugin's fixed registry key.
	ID() int
	// Name is used only for diagnostics (kdebug dumps, logs).
	Name() string

	// KernelCmd services a privileged kernel event (e.g. the keyboard IRQ
	// handler pushing a scancode).
	KernelCmd(id uint16, a0, a1, a2, a3 uint32) (uint32, error)
	// Cmd services a userspace plugin-id syscall.
	Cmd(callerPID int, id uint16, a0, a1, a2, a3 uint32) (uint32, error)
	// Tick is invoked once per timer tick (spec.md §4.9).
	Tick(nowTick uint32)

	// OnForkProc notifies the plugin that childPID was just created by
	// fork from parentPID, so it can initialize any out-of-band
	// per-process state it keeps (spec.md §4.8).
	OnForkProc(parentPID, childPID int) error
	// OnResetProc notifies the plugin that pid is about to exec (spec.md
	// §4.4: exec "resets" rather than destroys a process).
	OnResetProc(pid int) error
	// OnReapProc notifies the plugin that pid has been reaped and any
	// out-of-band state for it should be released.
	OnReapProc(pid int) error
	// OnShutdown notifies the plugin the kernel is halting.
	OnShutdown()
}

// BlockingPlugin is implemented by a Plugin whose Cmd can require the
// caller to park (spec.md §4.8's wait_* hooks, generalized to plugin-id
// commands): Cmd returns (_, kerr.New(..., kerr.WOULD_BLOCK, nil)), and the
// syscall dispatcher then calls WaitQueue with the same a0 the blocking
// Cmd call received to learn which vector queue and interest bit the
// caller should enqueue on before blocking (plugins/futex's CmdWait).
type BlockingPlugin interface {
	Plugin
	WaitQueue(a0 uint32) (*waitq.Vector, uint32)
}

// BasePlugin supplies a no-op default for every Plugin hook, so a concrete
// plugin embeds it and overrides only what it needs — mirroring
// BaseState's role for handle states.
type BasePlugin struct {
	id   int
	name string
}

// NewBasePlugin constructs the common header every plugin embeds first
// (the core's "downcasting via first-field embedding" modeled as Go
// embedding rather than a C `super` struct, per the design notes).
func NewBasePlugin(id int, name string) BasePlugin { return BasePlugin{id: id, name: name} }

func (p BasePlugin) ID() int     { return p.id }
func (p BasePlugin) Name() string { return p.name }

func (BasePlugin) KernelCmd(id uint16, a0, a1, a2, a3 uint32) (uint32, error) {
	return 0, kerr.New("hps.KernelCmd", kerr.NOT_IMPLEMENTED, nil)
}
func (BasePlugin) Cmd(callerPID int, id uint16, a0, a1, a2, a3 uint32) (uint32, error) {
	return 0, kerr.New("hps.Cmd", kerr.NOT_IMPLEMENTED, nil)
}
func (BasePlugin) Tick(nowTick uint32)                      {}
func (BasePlugin) OnForkProc(parentPID, childPID int) error { return nil }
func (BasePlugin) OnResetProc(pid int) error                { return nil }
func (BasePlugin) OnReapProc(pid int) error                 { return nil }
func (BasePlugin) OnShutdown()                              {}

// Registry is the global plugin registry (spec.md §3, Plugin).
type Registry struct {
	plugins map[int]Plugin
	order   []int // registration order, for deterministic Tick fan-out
}

// NewRegistry returns an empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{plugins: map[int]Plugin{}}
}

// Register installs p under its own ID.
func (r *Registry) Register(p Plugin) error {
	if _, exists := r.plugins[p.ID()]; exists {
		return kerr.New("hps.Registry.Register", kerr.IN_USE, nil)
	}
	r.plugins[p.ID()] = p
	r.order = append(r.order, p.ID())
	return nil
}

// Get returns the plugin registered under id.
func (r *Registry) Get(id int) (Plugin, error) {
	p, ok := r.plugins[id]
	if !ok {
		return nil, kerr.New("hps.Registry.Get", kerr.INVALID_INDEX, nil)
	}
	return p, nil
}

// Tick invokes every plugin's Tick hook in registration order (spec.md
// §4.9: "each plugin's tick hook is invoked").
func (r *Registry) Tick(nowTick uint32) {
	for _, id := range r.order {
		r.plugins[id].Tick(nowTick)
	}
}

// ForkNotify invokes OnForkProc on every plugin, collecting (not
// short-circuiting on) errors: SPEC_FULL.md §E.4 resolves the "rollback
// vs. proceed" open question as proceed-with-partial-state, so one
// plugin's failure must not prevent the rest from being notified.
func (r *Registry) ForkNotify(parentPID, childPID int) []error {
	var errs []error
	for _, id := range r.order {
		if err := r.plugins[id].OnForkProc(parentPID, childPID); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// ResetNotify invokes OnResetProc on every plugin (exec path).
func (r *Registry) ResetNotify(pid int) []error {
	var errs []error
	for _, id := range r.order {
		if err := r.plugins[id].OnResetProc(pid); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// ReapNotify invokes OnReapProc on every plugin.
func (r *Registry) ReapNotify(pid int) []error {
	var errs []error
	for _, id := range r.order {
		if err := r.plugins[id].OnReapProc(pid); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// ShutdownNotify invokes OnShutdown on every plugin, in reverse
// registration order (tear down most-recently-started services first).
func (r *Registry) ShutdownNotify() {
	for i := len(r.order) - 1; i >= 0; i-- {
		r.plugins[r.order[i]].OnShutdown()
	}
}
