package session

import "net/netip"

// RiskWeights holds the scoring constants in one place. The defaults are
// heuristic starting points, not calibrated against real abuse data; keeping
// them in a struct makes recalibration a config change rather than a code
// hunt.
type RiskWeights struct {
	BasePassword int
	BaseMFA      int
	BaseSSO      int

	PrivateIP int // added when the login IP is private (negative)
	PublicIP  int // added when the login IP is public

	UAAnomaly   int // missing or implausibly short user agent
	MinUALength int

	DriftPrivPriv int
	DriftPrivPub  int
	DriftPubPriv  int
	DriftPubPub   int
}

// DefaultRiskWeights returns the stock scoring constants.
func DefaultRiskWeights() RiskWeights {
	return RiskWeights{
		BasePassword:  30,
		BaseMFA:       10,
		BaseSSO:       15,
		PrivateIP:     -10,
		PublicIP:      20,
		UAAnomaly:     25,
		MinUALength:   50,
		DriftPrivPriv: 5,
		DriftPrivPub:  20,
		DriftPubPriv:  10,
		DriftPubPub:   30,
	}
}

// initialRisk scores a freshly created session from its login method and
// request context, clamped to [0, 100].
func (w RiskWeights) initialRisk(method LoginMethod, req RequestContext) int {
	score := 0
	switch method {
	case LoginMFA:
		score += w.BaseMFA
	case LoginSSO:
		score += w.BaseSSO
	default:
		score += w.BasePassword
	}
	if isPrivateIP(req.ClientIP) {
		score += w.PrivateIP
	} else {
		score += w.PublicIP
	}
	if len(req.UserAgent) < w.MinUALength {
		score += w.UAAnomaly
	}
	return clampRisk(score)
}

// driftIncrement is the risk added when a session's IP changes, by the
// private/public class of the old and new address.
func (w RiskWeights) driftIncrement(oldIP, newIP string) int {
	oldPriv := isPrivateIP(oldIP)
	newPriv := isPrivateIP(newIP)
	switch {
	case oldPriv && newPriv:
		return w.DriftPrivPriv
	case oldPriv && !newPriv:
		return w.DriftPrivPub
	case !oldPriv && newPriv:
		return w.DriftPubPriv
	default:
		return w.DriftPubPub
	}
}

// isPrivateIP reports whether ip parses to a private, loopback, or
// link-local address. Unparseable addresses count as public.
func isPrivateIP(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	return addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast()
}

func clampRisk(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
