package sandbox

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/frahmantamala/upi-sandbox/internal"
)

const (
	DefaultErrorCode        = "payment_failed"
	DefaultErrorDescription = "Payment declined by bank"
	DefaultPolicyName       = "default"
	DefaultSuccessRate      = 0.7
)

// Policy fixes the outcome and delay for a payment made from a VPA.
type Policy struct {
	Succeeds  bool
	Delay     time.Duration
	ErrorCode string
}

// FailureCode is the error code recorded when the policy fails a payment.
func (p Policy) FailureCode() string {
	if p.ErrorCode == "" {
		return DefaultErrorCode
	}
	return p.ErrorCode
}

// DefaultPolicy applies to VPAs that match no table entry.
type DefaultPolicy struct {
	SuccessRate float64
	Delay       time.Duration
	ErrorCode   string
}

func DefaultPolicies() map[string]Policy {
	return map[string]Policy{
		"success@*": {Succeeds: true, Delay: time.Second},
		"failure@*": {Succeeds: false, Delay: time.Second, ErrorCode: DefaultErrorCode},
		"slow@*":    {Succeeds: true, Delay: 5 * time.Second},
		"timeout@*": {Succeeds: false, Delay: 10 * time.Second, ErrorCode: "timeout"},
	}
}

func DefaultFallback() DefaultPolicy {
	return DefaultPolicy{
		SuccessRate: DefaultSuccessRate,
		Delay:       time.Second,
		ErrorCode:   DefaultErrorCode,
	}
}

// PolicyTable is read-only after construction and safe for concurrent lookups.
type PolicyTable struct {
	entries  map[string]Policy
	fallback DefaultPolicy

	rndMu sync.Mutex
	rnd   func() float64
}

// NewPolicyTable copies entries. Keys are exact VPAs or localpart@* wildcards.
// rnd drives the fallback outcome; nil uses math/rand.
func NewPolicyTable(entries map[string]Policy, fallback DefaultPolicy, rnd func() float64) *PolicyTable {
	copied := make(map[string]Policy, len(entries))
	for k, v := range entries {
		copied[k] = v
	}
	if rnd == nil {
		rnd = rand.Float64
	}
	return &PolicyTable{
		entries:  copied,
		fallback: fallback,
		rnd:      rnd,
	}
}

// NewPolicyTableFromConfig layers configured policies over the standard table.
func NewPolicyTableFromConfig(cfg internal.SandboxConfig, rnd func() float64) *PolicyTable {
	entries := DefaultPolicies()
	for _, p := range cfg.Policies {
		entries[p.VPA] = Policy{Succeeds: p.Succeeds, Delay: p.Delay, ErrorCode: p.ErrorCode}
	}

	fallback := DefaultFallback()
	fallback.SuccessRate = cfg.DefaultPolicy.SuccessRate
	if cfg.DefaultPolicy.Delay > 0 {
		fallback.Delay = cfg.DefaultPolicy.Delay
	}
	if cfg.DefaultPolicy.ErrorCode != "" {
		fallback.ErrorCode = cfg.DefaultPolicy.ErrorCode
	}
	return NewPolicyTable(entries, fallback, rnd)
}

// Lookup resolves the policy for vpa and returns it with the name of the matched entry.
func (t *PolicyTable) Lookup(vpa string) (Policy, string) {
	if p, ok := t.entries[vpa]; ok {
		return p, vpa
	}
	if at := strings.LastIndex(vpa, "@"); at > 0 {
		key := vpa[:at] + "@*"
		if p, ok := t.entries[key]; ok {
			return p, key
		}
	}

	t.rndMu.Lock()
	roll := t.rnd()
	t.rndMu.Unlock()

	return Policy{
		Succeeds:  roll < t.fallback.SuccessRate,
		Delay:     t.fallback.Delay,
		ErrorCode: t.fallback.ErrorCode,
	}, DefaultPolicyName
}

func (t *PolicyTable) Len() int {
	return len(t.entries)
}
