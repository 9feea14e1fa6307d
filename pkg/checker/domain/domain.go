// Package domain finds hostname shaped substrings in text and checks them against an allow-list.
package domain

import (
	"regexp"
)

// HostGroup names the capture group holding the hostname, e.g. `//(?P<host>[a-z.]+)`.
const HostGroup = "host"

// Extract returns every distinct substring matched by pattern in text, in order of first
// occurrence. Matches do not overlap. When pattern has a group named HostGroup, that
// group is taken instead of the whole match. Other groups are ignored.
func Extract(pattern *regexp.Regexp, text string) []string {
	if pattern == nil || text == "" {
		return []string{}
	}

	hostIndex := pattern.SubexpIndex(HostGroup)
	seen := make(map[string]struct{})
	domains := []string{}

	for _, match := range pattern.FindAllStringSubmatch(text, -1) {
		domain := hostFromMatch(match, hostIndex)
		if domain == "" {
			continue
		}
		if _, ok := seen[domain]; ok {
			continue
		}
		seen[domain] = struct{}{}
		domains = append(domains, domain)
	}

	return domains
}

func hostFromMatch(match []string, hostIndex int) string {
	if hostIndex > 0 && match[hostIndex] != "" {
		return match[hostIndex]
	}
	return match[0]
}

// Contains is the single match test used in match mode: does the whole text satisfy pattern.
func Contains(pattern *regexp.Regexp, text string) bool {
	return pattern != nil && pattern.MatchString(text)
}

// AllowList decides whether a hostname may be referenced by build output.
type AllowList struct {
	patterns []*regexp.Regexp
}

func NewAllowList(patterns []*regexp.Regexp) *AllowList {
	return &AllowList{patterns: append([]*regexp.Regexp(nil), patterns...)}
}

// Allowed reports whether any allow-list pattern matches domain.
// An empty allow-list allows nothing.
func (a *AllowList) Allowed(domain string) bool {
	for _, re := range a.patterns {
		if re.MatchString(domain) {
			return true
		}
	}
	return false
}

// Unallowed filters domains down to the ones no pattern allows, keeping their order.
func (a *AllowList) Unallowed(domains []string) []string {
	out := []string{}
	for _, domain := range domains {
		if !a.Allowed(domain) {
			out = append(out, domain)
		}
	}
	return out
}
