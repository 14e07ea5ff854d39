package guardian

import (
	"encoding/json"
	"net/netip"
	"time"

	"gopkg.in/yaml.v3"
)

// Condition kinds form a closed set. Anything else decodes to an
// UnknownCondition, which refuses to evaluate: unsupported kinds are an
// explicit error, never a silent allow.
const (
	KindTimeRange   = "time_range"
	KindIPAllowList = "ip_allowlist"
)

// Condition is one evaluable predicate attached to a policy or grant.
type Condition interface {
	Kind() string
	Evaluate(rc *RequestContext) (bool, error)
}

// TimeRangeCondition passes when the request timestamp, converted to
// Timezone, falls inside [Start, End): inclusive start, exclusive end.
// Windows where Start > End wrap midnight.
type TimeRangeCondition struct {
	Start    string // "09:00"
	End      string // "17:00"
	Timezone string // IANA name, empty = UTC
}

func (c *TimeRangeCondition) Kind() string { return KindTimeRange }

func (c *TimeRangeCondition) Evaluate(rc *RequestContext) (bool, error) {
	start, err := parseClock(c.Start)
	if err != nil {
		return false, evaluationf("time_range start %q: %v", c.Start, err)
	}
	end, err := parseClock(c.End)
	if err != nil {
		return false, evaluationf("time_range end %q: %v", c.End, err)
	}
	loc := time.UTC
	if c.Timezone != "" {
		loc, err = time.LoadLocation(c.Timezone)
		if err != nil {
			return false, evaluationf("time_range timezone %q: %v", c.Timezone, err)
		}
	}
	t := rc.At().In(loc)
	m := t.Hour()*60 + t.Minute()
	if start <= end {
		return m >= start && m < end, nil
	}
	// window wraps midnight
	return m >= start || m < end, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// IPAllowListCondition passes when the request IP falls inside any listed
// CIDR block. IPv4 and IPv6 notations both work.
type IPAllowListCondition struct {
	CIDRs []string
}

func (c *IPAllowListCondition) Kind() string { return KindIPAllowList }

func (c *IPAllowListCondition) Evaluate(rc *RequestContext) (bool, error) {
	if rc == nil || rc.IPAddress == "" {
		return false, evaluationf("ip_allowlist: no ip address in request context")
	}
	addr, err := netip.ParseAddr(rc.IPAddress)
	if err != nil {
		return false, evaluationf("ip_allowlist: bad ip %q: %v", rc.IPAddress, err)
	}
	addr = addr.Unmap()
	for _, cidr := range c.CIDRs {
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			return false, evaluationf("ip_allowlist: bad cidr %q: %v", cidr, err)
		}
		if prefix.Contains(addr) {
			return true, nil
		}
	}
	return false, nil
}

// UnknownCondition holds a condition of a kind this engine does not know.
// Evaluation always fails with an error naming the kind.
type UnknownCondition struct {
	RawKind string
	Raw     map[string]any
}

func (c *UnknownCondition) Kind() string { return c.RawKind }

func (c *UnknownCondition) Evaluate(*RequestContext) (bool, error) {
	return false, evaluationf("unknown condition type: %s", c.RawKind)
}

// ConditionSet is an ordered list of conditions that are ANDed together. It
// carries the tagged JSON/YAML codec for the closed condition set.
type ConditionSet []Condition

// EvaluateAll returns true only if every condition passes. The first
// evaluation error aborts and is returned, failing closed.
func (cs ConditionSet) EvaluateAll(rc *RequestContext) (bool, error) {
	for _, c := range cs {
		ok, err := c.Evaluate(rc)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Validate rejects condition sets containing kinds outside the closed set.
func (cs ConditionSet) Validate() error {
	for _, c := range cs {
		if _, ok := c.(*UnknownCondition); ok {
			return validationf("unknown condition type: %s", c.Kind())
		}
	}
	return nil
}

// DecodeCondition builds a Condition from its tagged map form.
func DecodeCondition(m map[string]any) Condition {
	kind, _ := m["kind"].(string)
	switch kind {
	case KindTimeRange:
		return &TimeRangeCondition{
			Start:    asString(m["start"]),
			End:      asString(m["end"]),
			Timezone: asString(m["timezone"]),
		}
	case KindIPAllowList:
		return &IPAllowListCondition{CIDRs: asStringSlice(m["cidrs"])}
	default:
		return &UnknownCondition{RawKind: kind, Raw: m}
	}
}

func conditionToMap(c Condition) map[string]any {
	switch v := c.(type) {
	case *TimeRangeCondition:
		m := map[string]any{"kind": KindTimeRange, "start": v.Start, "end": v.End}
		if v.Timezone != "" {
			m["timezone"] = v.Timezone
		}
		return m
	case *IPAllowListCondition:
		return map[string]any{"kind": KindIPAllowList, "cidrs": v.CIDRs}
	case *UnknownCondition:
		if v.Raw != nil {
			return v.Raw
		}
		return map[string]any{"kind": v.RawKind}
	default:
		return map[string]any{"kind": c.Kind()}
	}
}

func (cs ConditionSet) MarshalJSON() ([]byte, error) {
	maps := make([]map[string]any, 0, len(cs))
	for _, c := range cs {
		maps = append(maps, conditionToMap(c))
	}
	return json.Marshal(maps)
}

func (cs *ConditionSet) UnmarshalJSON(data []byte) error {
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(ConditionSet, 0, len(raw))
	for _, m := range raw {
		out = append(out, DecodeCondition(m))
	}
	*cs = out
	return nil
}

func (cs ConditionSet) MarshalYAML() (any, error) {
	maps := make([]map[string]any, 0, len(cs))
	for _, c := range cs {
		maps = append(maps, conditionToMap(c))
	}
	return maps, nil
}

func (cs *ConditionSet) UnmarshalYAML(value *yaml.Node) error {
	var raw []map[string]any
	if err := value.Decode(&raw); err != nil {
		return err
	}
	out := make(ConditionSet, 0, len(raw))
	for _, m := range raw {
		out = append(out, DecodeCondition(m))
	}
	*cs = out
	return nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asStringSlice(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, it := range vv {
			if s, ok := it.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
