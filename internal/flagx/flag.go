// Package flagx picks the server's own flags out of a command line that may
// carry other arguments, so several flag sets can share os.Args.
package flagx

import (
	"flag"
	"strings"
)

// FilterArgs keeps the arguments that belong to the named flags, in order.
// Names are given without dashes; "-a", "--a", "-a=v" and "--a=v" all match
// name "a". A flag given as a separate argument takes the next argument as
// its value unless that one starts with a dash.
func FilterArgs(args []string, names ...string) []string {
	known := make(map[string]bool, len(names))
	for _, n := range names {
		known[n] = true
	}

	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		name, hasValue, ok := flagName(args[i])
		if !ok || !known[name] {
			continue
		}
		out = append(out, args[i])
		if !hasValue && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			out = append(out, args[i+1])
			i++
		}
	}
	return out
}

// flagName strips the dashes and any "=value" from arg.
func flagName(arg string) (name string, hasValue, ok bool) {
	if !strings.HasPrefix(arg, "-") || arg == "-" || arg == "--" {
		return "", false, false
	}
	name = strings.TrimPrefix(strings.TrimPrefix(arg, "-"), "-")
	if before, _, found := strings.Cut(name, "="); found {
		return before, true, true
	}
	return name, false, true
}

// ConfigFile returns the config file path given with -c or -config in args,
// or "" when there is none. The last occurrence wins.
func ConfigFile(args []string) string {
	var path string

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.StringVar(&path, "config", "", "path to config file (.json, .yaml)")
	fs.StringVar(&path, "c", "", "path to config file (short)")
	_ = fs.Parse(FilterArgs(args, "c", "config"))

	return path
}
