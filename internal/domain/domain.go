// Package domain turns raw search hits into bare, validated host names.
package domain

import (
	"regexp"
	"sort"
	"strings"
)

const maxLength = 253

var (
	dottedQuad = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)
	hostShape  = regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}$`)
)

// blocked lists loopback and any-address hosts that must never be audited.
var blocked = map[string]struct{}{
	"localhost": {},
	"127.0.0.1": {},
	"0.0.0.0":   {},
	"::1":       {},
}

// Normalize strips scheme, path and port from raw, lower-cases it and drops
// a leading "www.". It does no validation.
func Normalize(raw string) string {
	d := strings.TrimSpace(raw)
	if i := strings.Index(d, "//"); i >= 0 {
		d = d[i+2:]
	}
	if i := strings.IndexByte(d, '/'); i >= 0 {
		d = d[:i]
	}
	if i := strings.IndexByte(d, ':'); i >= 0 {
		d = d[:i]
	}
	d = strings.ToLower(d)
	return strings.TrimPrefix(d, "www.")
}

// IsValid reports whether host is safe to hand to later audit stages.
func IsValid(host string) bool {
	if host == "" || len(host) > maxLength {
		return false
	}
	if _, ok := blocked[host]; ok {
		return false
	}
	if dottedQuad.MatchString(host) {
		return false
	}
	return hostShape.MatchString(host)
}

// Set is an unordered collection of validated hosts.
type Set map[string]struct{}

// Merge inserts every host of other into s.
func (s Set) Merge(other Set) {
	for h := range other {
		s[h] = struct{}{}
	}
}

// Sorted returns the hosts in lexicographic order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for h := range s {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

// Collect normalizes every url and keeps the valid hosts.
func Collect(urls []string) Set {
	set := make(Set, len(urls))
	for _, u := range urls {
		host := Normalize(u)
		if IsValid(host) {
			set[host] = struct{}{}
		}
	}
	return set
}
