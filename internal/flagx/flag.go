// Package flagx splits a mixed command line into the pieces each FlagSet
// understands. Global flags, command flags and positional arguments may be
// interleaved freely; every consumer picks out only what it knows about.
package flagx

import (
	"flag"
	"strings"
)

// Spec lists the flags a consumer understands. Value flags take an argument
// ("-o dir" or "-o=dir"); Bool flags never consume the following token.
type Spec struct {
	Value []string
	Bool  []string
}

func (s Spec) lookup() (map[string]bool, map[string]bool) {
	value := make(map[string]bool, len(s.Value))
	for _, f := range s.Value {
		value[f] = true
	}
	boolean := make(map[string]bool, len(s.Bool))
	for _, f := range s.Bool {
		boolean[f] = true
	}
	return value, boolean
}

// Merge returns a Spec containing the flags of s and other.
func (s Spec) Merge(other Spec) Spec {
	return Spec{
		Value: append(append([]string{}, s.Value...), other.Value...),
		Bool:  append(append([]string{}, s.Bool...), other.Bool...),
	}
}

// FilterArgs returns the subset of args that belongs to the flags in spec,
// keeping order.
//
// Supported formats:
//  1. Flag and value as separate arguments:  -c conf.json
//  2. Flag and value combined with '=':      -config=conf.json
//  3. Boolean flag on its own:               -y
//
// A value flag followed by a token starting with '-' is kept without a value
// so that flag.FlagSet reports the problem.
func FilterArgs(args []string, spec Spec) []string {
	value, boolean := spec.lookup()
	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name := strings.SplitN(arg, "=", 2)[0]
			if value[name] || boolean[name] {
				filtered = append(filtered, arg)
			}
			continue
		}

		switch {
		case boolean[arg]:
			filtered = append(filtered, arg)
		case value[arg]:
			filtered = append(filtered, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++
			}
		}
	}

	return filtered
}

// Positionals returns the arguments that are neither flags nor values of the
// value flags listed in spec. Unknown flags are dropped together with nothing
// else, so spec must list every value flag the command line may contain.
func Positionals(args []string, spec Spec) []string {
	value, _ := spec.lookup()
	out := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return append(out, args[i+1:]...)
		}
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			out = append(out, arg)
			continue
		}
		if strings.Contains(arg, "=") {
			continue
		}
		if value[arg] && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			i++
		}
	}
	return out
}

// ConfigFileSpec covers the -c / -config flags.
var ConfigFileSpec = Spec{Value: []string{"-c", "-config"}}

// JsonConfigFlags inspects args and extracts the config file path provided
// via the -c or -config flags. Other arguments are ignored. If neither flag
// is present, an empty string is returned.
func JsonConfigFlags(args []string) string {
	var config string

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.StringVar(&config, "config", "", "Path to config file")
	fs.StringVar(&config, "c", "", "Path to config file (short)")
	_ = fs.Parse(FilterArgs(args, ConfigFileSpec))

	return config
}
