// Package process spawns and supervises model processes. A language
// driver turns a manifest's args into an argv; a Handle wraps one
// running process with group-wide termination.
package process

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Driver builds the argv for one model from its manifest args.
type Driver func(args []string) ([]string, error)

// DriverRegistry maps driver tags to argv builders.
type DriverRegistry struct {
	drivers map[string]Driver
}

// NewDriverRegistry returns an empty registry.
func NewDriverRegistry() *DriverRegistry {
	return &DriverRegistry{drivers: make(map[string]Driver)}
}

// Register adds a driver under a tag, replacing any previous entry.
func (r *DriverRegistry) Register(tag string, d Driver) {
	r.drivers[tag] = d
}

// Resolve looks up a driver tag. Unknown tags report the registered
// alternatives so manifest typos are diagnosable.
func (r *DriverRegistry) Resolve(tag string) (Driver, error) {
	d, ok := r.drivers[tag]
	if !ok {
		return nil, fmt.Errorf("unknown model driver %q (registered: %s)", tag, strings.Join(r.Tags(), ", "))
	}
	return d, nil
}

// Tags returns the registered driver tags, sorted.
func (r *DriverRegistry) Tags() []string {
	tags := make([]string, 0, len(r.drivers))
	for tag := range r.drivers {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// DefaultDrivers returns a registry with the built-in language
// drivers.
func DefaultDrivers() *DriverRegistry {
	r := NewDriverRegistry()
	r.Register("executable", execDriver)
	r.Register("shell", shellDriver)
	r.Register("python", pythonDriver)
	r.Register("matlab", matlabDriver)
	return r
}

// execDriver runs the args verbatim: args[0] is the program.
func execDriver(args []string) ([]string, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("executable driver needs a program to run")
	}
	return args, nil
}

// shellDriver hands the joined args to sh -c so pipelines and
// redirections in the manifest keep working.
func shellDriver(args []string) ([]string, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("shell driver needs a command line")
	}
	return []string{"/bin/sh", "-c", strings.Join(args, " ")}, nil
}

// pythonDriver prepends the interpreter; args[0] is the script.
func pythonDriver(args []string) ([]string, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("python driver needs a script")
	}
	return append([]string{"python3"}, args...), nil
}

// matlabDriver runs args[0] as a batch script. MATLAB addresses
// scripts by function name, so the .m suffix and directory are
// stripped.
func matlabDriver(args []string) ([]string, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("matlab driver needs a script")
	}
	name := strings.TrimSuffix(filepath.Base(args[0]), ".m")
	argv := []string{"matlab", "-batch", name}
	return append(argv, args[1:]...), nil
}
