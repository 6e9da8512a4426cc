package evalcfg

import "flag"

// ExplicitFlags returns the names of the flags set on the command line.
func ExplicitFlags(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	return set
}

// Override copies value into dst when the named flag was set explicitly
// to a non-empty value.
func Override(set map[string]bool, name string, dst *string, value string) {
	if set[name] && value != "" {
		*dst = value
	}
}
