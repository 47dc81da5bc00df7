package featureflag

import (
	"slices"
	"strings"
)

// FeatureFlag is a lookup map for the features switched by the
// WORLDSTREAM_FEATURE_FLAGS option.
type FeatureFlag map[Flag]struct{}

// New returns the feature flags of the given list. Names are trimmed and
// upper cased, empty names are ignored.
func New(flags []string) FeatureFlag {
	featureFlag := make(FeatureFlag)
	for _, f := range flags {
		f = strings.ToUpper(strings.TrimSpace(f))
		if f == "" {
			continue
		}
		featureFlag[Flag(f)] = struct{}{}
	}
	return featureFlag
}

// IsSet reports whether the flag is set.
func (f FeatureFlag) IsSet(flag Flag) bool {
	_, ok := f[flag]
	return ok
}

// IfSet runs do when the flag is set.
func (f FeatureFlag) IfSet(flag Flag, do func()) {
	if f.IsSet(flag) {
		do()
	}
}

// IfNotSet runs do when the flag is not set.
func (f FeatureFlag) IfNotSet(flag Flag, do func()) {
	if !f.IsSet(flag) {
		do()
	}
}

// Unknown returns the sorted flags that are not streaming switches.
func (f FeatureFlag) Unknown() []string {
	var unknown []string
	for flag := range f {
		if !slices.Contains(knownFlags, flag) {
			unknown = append(unknown, string(flag))
		}
	}
	slices.Sort(unknown)
	return unknown
}
