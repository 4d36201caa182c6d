package sip

import "path"

// evaluateRules returns the first RoutingRule whose patterns all match info,
// in table order, and reports whether any rule matched (§4.6 step 2). A
// rule with no rules configured at all falls through to no match, which
// Frontend treats as a reject.
func evaluateRules(rules []RoutingRule, info SIPCallInfo) (RoutingRule, bool) {
	for _, r := range rules {
		if r.matches(info) {
			return r, true
		}
	}
	return RoutingRule{}, false
}

func (r RoutingRule) matches(info SIPCallInfo) bool {
	if !globMatch(r.CallerPattern, info.CallerNumber) {
		return false
	}
	if !globMatch(r.CalledPattern, info.CalledNumber) {
		return false
	}
	if !globMatch(r.TrunkPattern, info.TrunkName) {
		return false
	}
	for header, pattern := range r.HeaderPatterns {
		if !globMatch(pattern, info.Headers[header]) {
			return false
		}
	}
	return true
}

// globMatch reports whether value matches pattern using shell-style `*`/`?`
// wildcards. An empty pattern matches anything, including an empty value.
func globMatch(pattern, value string) bool {
	if pattern == "" {
		return true
	}
	ok, err := path.Match(pattern, value)
	return err == nil && ok
}
