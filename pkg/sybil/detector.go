// Package sybil implements Sybil/Eclipse Protection (C9): a weighted
// risk score over wallet clusters, validator-set diversity constraints,
// and coordinated-attack signal detection during a validation session.
//
// Grounded on pkg/batch/peer_manager.go's peer-bookkeeping shape
// (network address + last-seen tracking) generalized to validator
// network/stake/trust-cluster metadata.
package sybil

import (
	"math"
	"sync"
	"time"

	"github.com/certen/trustvm/pkg/types"
)

// NetworkInfo is what the detector tracks per validator for diversity
// checks.
type NetworkInfo struct {
	IPPrefix      string
	PeerAddresses []types.Address
	StakeCluster  string
	TrustCluster  string
}

// Detector holds per-validator network/stake metadata used for
// diversity enforcement and risk scoring.
type Detector struct {
	mu      sync.RWMutex
	network map[types.Address]NetworkInfo
	stake   map[types.Address]uint64
}

// New constructs an empty Detector.
func New() *Detector {
	return &Detector{
		network: make(map[types.Address]NetworkInfo),
		stake:   make(map[types.Address]uint64),
	}
}

// UpdateNetworkInfo records observed network metadata for validator.
func (d *Detector) UpdateNetworkInfo(validator types.Address, ip string, peers []types.Address) {
	d.mu.Lock()
	defer d.mu.Unlock()
	info := d.network[validator]
	info.IPPrefix = ipPrefix(ip)
	info.PeerAddresses = peers
	d.network[validator] = info
}

// UpdateStakeInfo records the bonded stake for validator.
func (d *Detector) UpdateStakeInfo(validator types.Address, stake uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stake[validator] = stake
}

// Stake returns the bonded stake the detector has on record for
// validator, or 0 if none was ever reported.
func (d *Detector) Stake(validator types.Address) uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stake[validator]
}

func ipPrefix(ip string) string {
	// /24-equivalent prefix: first three dot-separated octets.
	dots := 0
	for i, c := range ip {
		if c == '.' {
			dots++
			if dots == 3 {
				return ip[:i]
			}
		}
	}
	return ip
}

// ClusterSignals is the evidence the Sybil risk score is computed from.
type ClusterSignals struct {
	ClusterSize       int
	ClusterAge        time.Duration
	MemberTxCounts    []float64
	MemberReputations []float64
	RecentFraudCount  int
}

// RiskResult is the detector's verdict for one cluster.
type RiskResult struct {
	IsSybil    bool
	Confidence float64
	Reason     string
	Suspicious []types.Address
}

// clusterSizeScore implements the §4.7 cluster-size weight table.
func clusterSizeScore(size int) float64 {
	switch {
	case size <= 1:
		return 0.0
	case size <= 5:
		return 0.3
	case size <= 10:
		return 0.5
	case size <= 20:
		return 0.8
	default:
		return 1.0
	}
}

func clusterAgeScore(age time.Duration) float64 {
	switch {
	case age < 24*time.Hour:
		return 1.0
	case age < 7*24*time.Hour:
		return 0.7
	case age < 30*24*time.Hour:
		return 0.4
	default:
		return 0.0
	}
}

// coefficientOfVariation returns stddev/mean for values, or 0 when the
// mean is 0 or fewer than two samples exist.
func coefficientOfVariation(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	if mean == 0 {
		return 0
	}
	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return math.Sqrt(variance) / mean
}

func txPatternScore(cv float64) float64 {
	switch {
	case cv < 0.3:
		return 0.9
	case cv < 0.5:
		return 0.6
	case cv < 0.7:
		return 0.3
	default:
		return 0.0
	}
}

func reputationHomogeneityScore(cv float64) float64 {
	switch {
	case cv < 0.1:
		return 1.0
	case cv < 0.2:
		return 0.7
	case cv < 0.3:
		return 0.4
	default:
		return 0.0
	}
}

func fraudHistoryScore(count int) float64 {
	switch {
	case count >= 5:
		return 1.0
	case count >= 3:
		return 0.7
	case count >= 1:
		return 0.4
	default:
		return 0.0
	}
}

// Weights for the five Sybil risk components, summing to 1.0.
const (
	weightClusterSize   = 0.25
	weightClusterAge    = 0.20
	weightTxPattern     = 0.20
	weightReputationHom = 0.20
	weightFraudHistory  = 0.15
)

// RiskScore computes the aggregate Sybil risk score in [0,1] for a
// cluster's signals.
func RiskScore(s ClusterSignals) float64 {
	score := weightClusterSize*clusterSizeScore(s.ClusterSize) +
		weightClusterAge*clusterAgeScore(s.ClusterAge) +
		weightTxPattern*txPatternScore(coefficientOfVariation(s.MemberTxCounts)) +
		weightReputationHom*reputationHomogeneityScore(coefficientOfVariation(s.MemberReputations)) +
		weightFraudHistory*fraudHistoryScore(s.RecentFraudCount)
	return score
}

// DetectSybilNetwork evaluates candidates and returns the aggregate
// risk verdict. A cluster is declared Sybil at risk >= 0.7.
func DetectSybilNetwork(candidates []types.Address, signals ClusterSignals) RiskResult {
	risk := RiskScore(signals)
	result := RiskResult{Confidence: risk}
	if risk >= 0.7 {
		result.IsSybil = true
		result.Reason = "aggregate Sybil risk score exceeds 0.7"
		result.Suspicious = candidates
	}
	return result
}

// AutoPenaltyThreshold is the risk level at which every cluster member
// takes an automatic reputation penalty.
const AutoPenaltyThreshold = 0.9

// AutoPenaltyPoints is the reputation points deducted at AutoPenaltyThreshold.
const AutoPenaltyPoints = 50

// DAOEscalationThreshold is the confidence level at which a detection is
// escalated to governance instead of (or in addition to) auto-penalizing.
const DAOEscalationThreshold = 0.6

// ShouldAutoPenalize reports whether result crosses the automatic
// penalty threshold.
func (r RiskResult) ShouldAutoPenalize() bool {
	return r.Confidence >= AutoPenaltyThreshold
}

// ShouldEscalateToDAO reports whether result crosses the DAO-escalation
// confidence threshold.
func (r RiskResult) ShouldEscalateToDAO() bool {
	return r.Confidence >= DAOEscalationThreshold
}

// IsValidatorEligible reports whether a validator meets §4.5's baseline
// eligibility for selection: reputation >= 70, stake >= 1, recent
// activity. The actual reputation/activity lookups are the caller's
// responsibility; this checks only the stake the detector tracks.
func (d *Detector) IsValidatorEligible(validator types.Address) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stake[validator] >= 1
}

// ValidateSetDiversity reports whether a validator set avoids
// concentration on a single network-address prefix, stake cluster, or
// trust-graph cluster.
func (d *Detector) ValidateSetDiversity(validators []types.Address) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if len(validators) == 0 {
		return true
	}
	ipCounts := make(map[string]int)
	stakeCounts := make(map[string]int)
	trustCounts := make(map[string]int)
	for _, v := range validators {
		info := d.network[v]
		ipCounts[info.IPPrefix]++
		stakeCounts[info.StakeCluster]++
		trustCounts[info.TrustCluster]++
	}
	threshold := (len(validators) / 2) + 1
	for _, counts := range []map[string]int{ipCounts, stakeCounts, trustCounts} {
		for key, c := range counts {
			if key == "" {
				continue
			}
			if c >= threshold {
				return false
			}
		}
	}
	return true
}
