package upiclient

import (
	"math"
	"strconv"
	"strings"

	"github.com/frahmantamala/upi-sandbox/internal/core/common/validation"
)

// IsValidVPA is a format check only; it does not contact the sandbox.
func IsValidVPA(vpa string) bool {
	return validation.IsValidVPA(vpa)
}

// TestVPAs returns the sandbox addresses with fixed outcomes, keyed by behaviour.
func TestVPAs() map[string]string {
	return map[string]string{
		"success": "success@razorpay",
		"failure": "failure@razorpay",
		"slow":    "slow@razorpay",
		"timeout": "timeout@razorpay",
	}
}

// FormatINR renders rupees with Indian digit grouping, e.g. ₹1,23,456.78.
func FormatINR(amount float64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}

	fixed := strconv.FormatFloat(math.Round(amount*100)/100, 'f', 2, 64)
	whole, frac, _ := strings.Cut(fixed, ".")

	var groups []string
	if len(whole) > 3 {
		groups = append(groups, whole[len(whole)-3:])
		whole = whole[:len(whole)-3]
		for len(whole) > 2 {
			groups = append([]string{whole[len(whole)-2:]}, groups...)
			whole = whole[:len(whole)-2]
		}
	}
	groups = append([]string{whole}, groups...)

	return sign + "₹" + strings.Join(groups, ",") + "." + frac
}
