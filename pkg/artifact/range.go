package artifact

import (
	"fmt"
	"strings"
)

// InvalidVersionSpecError is returned for malformed version constraints
type InvalidVersionSpecError struct {
	Spec   string
	Reason string
}

func (e *InvalidVersionSpecError) Error() string {
	return fmt.Sprintf("invalid version specification '%s': %s", e.Spec, e.Reason)
}

// Bound is one end of a restriction
type Bound struct {
	Version   string
	Inclusive bool
}

// Restriction is a single interval; a nil bound is unbounded on that side
type Restriction struct {
	Lower *Bound
	Upper *Bound
}

// Contains reports whether the version lies inside the interval
func (r Restriction) Contains(version string) bool {
	if r.Lower != nil {
		c := CompareVersions(version, r.Lower.Version)
		if c < 0 || (c == 0 && !r.Lower.Inclusive) {
			return false
		}
	}
	if r.Upper != nil {
		c := CompareVersions(version, r.Upper.Version)
		if c > 0 || (c == 0 && !r.Upper.Inclusive) {
			return false
		}
	}
	return true
}

func (r Restriction) String() string {
	var b strings.Builder
	if r.Lower != nil && r.Lower.Inclusive {
		b.WriteByte('[')
	} else {
		b.WriteByte('(')
	}
	if r.Lower != nil {
		b.WriteString(r.Lower.Version)
	}
	if r.Lower == nil || r.Upper == nil || r.Lower.Version != r.Upper.Version {
		b.WriteByte(',')
		if r.Upper != nil {
			b.WriteString(r.Upper.Version)
		}
	}
	if r.Upper != nil && r.Upper.Inclusive {
		b.WriteByte(']')
	} else {
		b.WriteByte(')')
	}
	return b.String()
}

// Constraint is either a soft recommended version or a set of restrictions
type Constraint struct {
	Spec         string
	Recommended  string
	Restrictions []Restriction
}

// IsRange reports whether a version string is a range rather than a specific version
func IsRange(spec string) bool {
	spec = strings.TrimSpace(spec)
	return strings.HasPrefix(spec, "[") || strings.HasPrefix(spec, "(")
}

// ParseConstraint parses "1.0", "[1.0]", "[1.0,2.0)", "(,1.0],[1.2,)" and similar
func ParseConstraint(spec string) (*Constraint, error) {
	c := &Constraint{Spec: spec}
	process := strings.TrimSpace(spec)
	if process == "" {
		return nil, &InvalidVersionSpecError{Spec: spec, Reason: "empty version"}
	}
	if !IsRange(process) {
		c.Recommended = process
		return c, nil
	}

	for IsRange(process) {
		end := strings.IndexAny(process, "])")
		if end < 0 {
			return nil, &InvalidVersionSpecError{Spec: spec, Reason: "unbounded range"}
		}
		r, err := parseRestriction(spec, process[:end+1])
		if err != nil {
			return nil, err
		}
		if n := len(c.Restrictions); n > 0 {
			prev := c.Restrictions[n-1]
			if prev.Upper == nil || r.Lower == nil || CompareVersions(prev.Upper.Version, r.Lower.Version) > 0 {
				return nil, &InvalidVersionSpecError{Spec: spec, Reason: "ranges overlap"}
			}
		}
		c.Restrictions = append(c.Restrictions, r)

		process = strings.TrimSpace(process[end+1:])
		process = strings.TrimSpace(strings.TrimPrefix(process, ","))
	}
	if process != "" {
		return nil, &InvalidVersionSpecError{Spec: spec, Reason: "only fully-qualified sets allowed in multiple set scenario"}
	}
	return c, nil
}

func parseRestriction(spec, s string) (Restriction, error) {
	lowerInclusive := s[0] == '['
	upperInclusive := s[len(s)-1] == ']'
	inner := strings.TrimSpace(s[1 : len(s)-1])

	comma := strings.IndexByte(inner, ',')
	if comma < 0 {
		if !lowerInclusive || !upperInclusive {
			return Restriction{}, &InvalidVersionSpecError{Spec: spec, Reason: "single version must be surrounded by []"}
		}
		b := &Bound{Version: inner, Inclusive: true}
		return Restriction{Lower: b, Upper: b}, nil
	}

	var r Restriction
	lower := strings.TrimSpace(inner[:comma])
	upper := strings.TrimSpace(inner[comma+1:])
	if strings.Contains(upper, ",") {
		return Restriction{}, &InvalidVersionSpecError{Spec: spec, Reason: "more than two bounds"}
	}
	if lower != "" {
		r.Lower = &Bound{Version: lower, Inclusive: lowerInclusive}
	}
	if upper != "" {
		r.Upper = &Bound{Version: upper, Inclusive: upperInclusive}
	}
	if r.Lower != nil && r.Upper != nil && CompareVersions(upper, lower) < 0 {
		return Restriction{}, &InvalidVersionSpecError{Spec: spec, Reason: "range defies version ordering"}
	}
	return r, nil
}

// IsRange reports whether the constraint carries restrictions
func (c *Constraint) IsRange() bool {
	return len(c.Restrictions) > 0
}

// HasUpperBound reports whether every restriction has an upper bound.
// A soft version has no range and therefore no upper bound.
func (c *Constraint) HasUpperBound() bool {
	if len(c.Restrictions) == 0 {
		return false
	}
	for _, r := range c.Restrictions {
		if r.Upper == nil {
			return false
		}
	}
	return true
}

// Contains reports whether the version satisfies the constraint
func (c *Constraint) Contains(version string) bool {
	if len(c.Restrictions) == 0 {
		return CompareVersions(version, c.Recommended) == 0
	}
	for _, r := range c.Restrictions {
		if r.Contains(version) {
			return true
		}
	}
	return false
}

// Filter returns the candidates that satisfy the constraint, sorted ascending
func (c *Constraint) Filter(candidates []string) []string {
	var out []string
	for _, v := range candidates {
		if c.Contains(v) {
			out = append(out, v)
		}
	}
	SortVersions(out)
	return out
}

func (c *Constraint) String() string {
	if len(c.Restrictions) == 0 {
		return c.Recommended
	}
	parts := make([]string, len(c.Restrictions))
	for i, r := range c.Restrictions {
		parts[i] = r.String()
	}
	return strings.Join(parts, ",")
}
