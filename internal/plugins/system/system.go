// Package system answers questions about the local machine: clock,
// host details, memory, and running processes.
package system

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dshills/valet/internal/plugin"
)

// UsageResponse is the answer when no system topic can be recognized.
const UsageResponse = "I can tell you the time, the date, system info, memory usage, or list processes."

const processLimit = 10

// Runner executes a host command and returns its combined stdout.
// Injected so tests never shell out.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Plugin reports local machine state.
type Plugin struct {
	plugin.Base
	run Runner
	now func() time.Time
}

// Option configures the plugin.
type Option func(*Plugin)

// WithRunner replaces the command runner used for process listings.
func WithRunner(run Runner) Option {
	return func(p *Plugin) { p.run = run }
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(p *Plugin) { p.now = now }
}

// New builds the system plugin.
func New(opts ...Option) *Plugin {
	p := &Plugin{
		Base: plugin.NewBase("system", "System",
			"what time is it, what's the date, system info, memory usage, list processes",
			"time", "date", "today", "system", "cpu", "memory", "process", "processes"),
		run: execRunner,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Execute picks the first recognized topic in the command.
func (p *Plugin) Execute(ctx context.Context, cmd plugin.Command) (string, error) {
	text := plugin.Normalize(cmd.Text)

	switch {
	case strings.Contains(text, "time"):
		return fmt.Sprintf("It's %s.", p.now().Format("3:04 PM")), nil
	case strings.Contains(text, "date") || strings.Contains(text, "today"):
		return fmt.Sprintf("Today is %s.", p.now().Format("Monday, January 2, 2006")), nil
	case strings.Contains(text, "process") || strings.Contains(text, "task"):
		return p.listProcesses(ctx)
	case strings.Contains(text, "memory"):
		return memoryReport(), nil
	case strings.Contains(text, "cpu") || strings.Contains(text, "system"):
		return hostReport(), nil
	default:
		return UsageResponse, nil
	}
}

func hostReport() string {
	return fmt.Sprintf("Running on %s/%s with %d CPUs available.",
		runtime.GOOS, runtime.GOARCH, runtime.NumCPU())
}

func memoryReport() string {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return fmt.Sprintf("The assistant is using %.1f MB of memory, %.1f MB allocated over its lifetime.",
		float64(m.Alloc)/(1<<20), float64(m.TotalAlloc)/(1<<20))
}

type processInfo struct {
	pid  string
	cpu  float64
	name string
}

func (p *Plugin) listProcesses(ctx context.Context) (string, error) {
	out, err := p.run(ctx, "ps", "axo", "pid,pcpu,comm")
	if err != nil {
		return "", fmt.Errorf("system: list processes: %w", err)
	}

	procs := parseProcesses(string(out))
	if len(procs) == 0 {
		return "I couldn't read the process table.", nil
	}
	sort.SliceStable(procs, func(i, j int) bool { return procs[i].cpu > procs[j].cpu })
	if len(procs) > processLimit {
		procs = procs[:processLimit]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Top %d processes by CPU usage:", len(procs))
	for i, proc := range procs {
		fmt.Fprintf(&b, "\n%d. %s (PID %s) at %.1f%% CPU", i+1, proc.name, proc.pid, proc.cpu)
	}
	return b.String(), nil
}

// parseProcesses reads `ps axo pid,pcpu,comm` output, skipping the
// header and anything malformed.
func parseProcesses(out string) []processInfo {
	var procs []processInfo
	for i, line := range strings.Split(out, "\n") {
		if i == 0 {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		cpu, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			continue
		}
		procs = append(procs, processInfo{
			pid:  fields[0],
			cpu:  cpu,
			name: strings.Join(fields[2:], " "),
		})
	}
	return procs
}
