package guardian

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestTimeRangeConditionBoundaries(t *testing.T) {
	c := &TimeRangeCondition{Start: "09:00", End: "17:00"}

	cases := []struct {
		ts   string
		want bool
	}{
		{"2024-01-15T10:00:00Z", true},
		{"2024-01-15T20:00:00Z", false},
		{"2024-01-15T09:00:00Z", true},  // inclusive start
		{"2024-01-15T17:00:00Z", false}, // exclusive end
		{"2024-01-15T16:59:00Z", true},
	}
	for _, tc := range cases {
		ts, _ := time.Parse(time.RFC3339, tc.ts)
		got, err := c.Evaluate(&RequestContext{Timestamp: ts})
		if err != nil {
			t.Fatalf("evaluate %s: %v", tc.ts, err)
		}
		if got != tc.want {
			t.Fatalf("evaluate %s = %v, want %v", tc.ts, got, tc.want)
		}
	}
}

func TestTimeRangeConditionMidnightWrap(t *testing.T) {
	c := &TimeRangeCondition{Start: "22:00", End: "06:00"}

	late, _ := time.Parse(time.RFC3339, "2024-01-15T23:30:00Z")
	early, _ := time.Parse(time.RFC3339, "2024-01-15T05:00:00Z")
	noon, _ := time.Parse(time.RFC3339, "2024-01-15T12:00:00Z")

	if ok, _ := c.Evaluate(&RequestContext{Timestamp: late}); !ok {
		t.Fatalf("23:30 should fall in 22:00-06:00")
	}
	if ok, _ := c.Evaluate(&RequestContext{Timestamp: early}); !ok {
		t.Fatalf("05:00 should fall in 22:00-06:00")
	}
	if ok, _ := c.Evaluate(&RequestContext{Timestamp: noon}); ok {
		t.Fatalf("12:00 should not fall in 22:00-06:00")
	}
}

func TestTimeRangeConditionTimezone(t *testing.T) {
	c := &TimeRangeCondition{Start: "09:00", End: "17:00", Timezone: "America/New_York"}

	// 14:00 UTC is 09:00 or 10:00 in New York depending on DST; January is EST (UTC-5)
	ts, _ := time.Parse(time.RFC3339, "2024-01-15T14:00:00Z")
	if ok, err := c.Evaluate(&RequestContext{Timestamp: ts}); err != nil || !ok {
		t.Fatalf("14:00Z should be 09:00 EST: ok=%v err=%v", ok, err)
	}
	before, _ := time.Parse(time.RFC3339, "2024-01-15T13:59:00Z")
	if ok, _ := c.Evaluate(&RequestContext{Timestamp: before}); ok {
		t.Fatalf("13:59Z is 08:59 EST, outside the window")
	}
}

func TestTimeRangeConditionBadInput(t *testing.T) {
	for _, c := range []*TimeRangeCondition{
		{Start: "nonsense", End: "17:00"},
		{Start: "09:00", End: "17:00", Timezone: "Mars/Olympus"},
	} {
		if _, err := c.Evaluate(&RequestContext{Timestamp: time.Now()}); !errors.Is(err, ErrPolicyEvaluation) {
			t.Fatalf("expected ErrPolicyEvaluation, got %v", err)
		}
	}
}

func TestIPAllowListCondition(t *testing.T) {
	c := &IPAllowListCondition{CIDRs: []string{"10.0.0.0/8", "2001:db8::/32"}}

	cases := []struct {
		ip   string
		want bool
	}{
		{"10.1.2.3", true},
		{"192.168.1.1", false},
		{"2001:db8::1", true},
		{"2001:db9::1", false},
	}
	for _, tc := range cases {
		got, err := c.Evaluate(&RequestContext{IPAddress: tc.ip})
		if err != nil {
			t.Fatalf("evaluate %s: %v", tc.ip, err)
		}
		if got != tc.want {
			t.Fatalf("evaluate %s = %v, want %v", tc.ip, got, tc.want)
		}
	}
}

func TestIPAllowListConditionFailsClosed(t *testing.T) {
	c := &IPAllowListCondition{CIDRs: []string{"10.0.0.0/8"}}

	if _, err := c.Evaluate(&RequestContext{}); !errors.Is(err, ErrPolicyEvaluation) {
		t.Fatalf("missing ip should be an evaluation error, got %v", err)
	}
	if _, err := c.Evaluate(&RequestContext{IPAddress: "not-an-ip"}); !errors.Is(err, ErrPolicyEvaluation) {
		t.Fatalf("bad ip should be an evaluation error, got %v", err)
	}

	bad := &IPAllowListCondition{CIDRs: []string{"garbage"}}
	if _, err := bad.Evaluate(&RequestContext{IPAddress: "10.0.0.1"}); !errors.Is(err, ErrPolicyEvaluation) {
		t.Fatalf("bad cidr should be an evaluation error, got %v", err)
	}
}

func TestUnknownConditionFailsClosed(t *testing.T) {
	cs := ConditionSet{}
	if err := json.Unmarshal([]byte(`[{"kind":"device_posture","os":"ios"}]`), &cs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := cs.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("unknown kind should fail validation, got %v", err)
	}
	_, err := cs.EvaluateAll(&RequestContext{Timestamp: time.Now()})
	if !errors.Is(err, ErrPolicyEvaluation) {
		t.Fatalf("unknown kind should fail evaluation, got %v", err)
	}
	if err != nil && !strings.Contains(err.Error(), "device_posture") {
		t.Fatalf("error should name the unknown kind, got %q", err.Error())
	}
}

func TestConditionSetJSONRoundTrip(t *testing.T) {
	cs := ConditionSet{
		&TimeRangeCondition{Start: "09:00", End: "17:00", Timezone: "UTC"},
		&IPAllowListCondition{CIDRs: []string{"10.0.0.0/8"}},
	}
	data, err := json.Marshal(cs)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back ConditionSet
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(back) != 2 {
		t.Fatalf("expected 2 conditions, got %d", len(back))
	}
	tr, ok := back[0].(*TimeRangeCondition)
	if !ok || tr.Start != "09:00" || tr.End != "17:00" || tr.Timezone != "UTC" {
		t.Fatalf("time_range did not survive roundtrip: %+v", back[0])
	}
	ip, ok := back[1].(*IPAllowListCondition)
	if !ok || len(ip.CIDRs) != 1 || ip.CIDRs[0] != "10.0.0.0/8" {
		t.Fatalf("ip_allowlist did not survive roundtrip: %+v", back[1])
	}
}

func TestConditionSetANDSemantics(t *testing.T) {
	cs := ConditionSet{
		&TimeRangeCondition{Start: "09:00", End: "17:00"},
		&IPAllowListCondition{CIDRs: []string{"10.0.0.0/8"}},
	}
	ts, _ := time.Parse(time.RFC3339, "2024-01-15T10:00:00Z")

	if ok, err := cs.EvaluateAll(&RequestContext{Timestamp: ts, IPAddress: "10.0.0.1"}); err != nil || !ok {
		t.Fatalf("both pass: ok=%v err=%v", ok, err)
	}
	if ok, err := cs.EvaluateAll(&RequestContext{Timestamp: ts, IPAddress: "192.168.0.1"}); err != nil || ok {
		t.Fatalf("one failing condition must fail the set: ok=%v err=%v", ok, err)
	}
}
