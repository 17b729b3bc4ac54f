package hatconsensus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/certen/trustvm/pkg/dao"
	"github.com/certen/trustvm/pkg/fraud"
	"github.com/certen/trustvm/pkg/kv"
	"github.com/certen/trustvm/pkg/p2p"
	"github.com/certen/trustvm/pkg/reputation"
	"github.com/certen/trustvm/pkg/signing"
	"github.com/certen/trustvm/pkg/sybil"
	"github.com/certen/trustvm/pkg/types"
	"github.com/certen/trustvm/pkg/wallet"
)

// ValidationTimeout is the §5 session suspension bound: how long the
// initiator waits for responses before closing the session.
const ValidationTimeout = 30 * time.Second

// session is the ephemeral, in-memory state of one transaction's
// validation (spec.md glossary: "validation session").
type session struct {
	mu        sync.Mutex
	request   types.ValidationRequest
	selected  map[types.Address]bool
	responses map[types.Address]types.ValidationResponse
	done      chan struct{}
	closed    bool
}

func newSession(req types.ValidationRequest, selected []types.Address) *session {
	sel := make(map[types.Address]bool, len(selected))
	for _, a := range selected {
		sel[a] = true
	}
	return &session{
		request:   req,
		selected:  sel,
		responses: make(map[types.Address]types.ValidationResponse),
		done:      make(chan struct{}),
	}
}

func (s *session) responseList() []types.ValidationResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.ValidationResponse, 0, len(s.responses))
	for _, r := range s.responses {
		out = append(out, r)
	}
	return out
}

// Coordinator orchestrates HAT consensus sessions end to end: selection,
// broadcast, response processing, tallying and tx-state persistence.
// Grounded on pkg/batch/consensus_coordinator.go's entries map + mutex
// shape, narrowed to per-transaction HAT sessions.
type Coordinator struct {
	store       kv.Store
	network     p2p.Network
	validators  *ValidatorRegistry
	sybil       *sybil.Detector
	clusterer   *wallet.Clusterer
	rateLimiter *RateLimiter

	// Optional arbitration collaborators, wired via SetArbitration once
	// the caller has constructed them. A session proceeds without them
	// (consensus state transitions still apply); only the downstream
	// fraud-record / dispute-package / Sybil-alert side effects are
	// skipped when nil.
	fraud      *fraud.Registry
	dao        *dao.Registry
	sybilMon   *sybil.Monitor
	reputation *reputation.Registry

	mu       sync.Mutex
	sessions map[types.Hash]*session
}

// SetArbitration wires the C11/C12/C9 collaborators a session consults
// once automated tallying rejects a claim or can't decide: fraudRegistry
// records a graded fraud claim (§4.6), daoRegistry packages the dispute
// case for governance (§4.6), monitor scores and persists the
// fraudster's wallet cluster for Sybil self-accusation (§4.7), and rep
// supplies the cluster-member reputations the monitor's homogeneity
// signal needs.
func (c *Coordinator) SetArbitration(fraudRegistry *fraud.Registry, daoRegistry *dao.Registry, monitor *sybil.Monitor, rep *reputation.Registry) {
	c.fraud = fraudRegistry
	c.dao = daoRegistry
	c.sybilMon = monitor
	c.reputation = rep
}

// New constructs a Coordinator.
func New(store kv.Store, network p2p.Network, validators *ValidatorRegistry, sybilDetector *sybil.Detector, clusterer *wallet.Clusterer) *Coordinator {
	return &Coordinator{
		store:       store,
		network:     network,
		validators:  validators,
		sybil:       sybilDetector,
		clusterer:   clusterer,
		rateLimiter: NewRateLimiter(),
		sessions:    make(map[types.Hash]*session),
	}
}

func txStateValue(s types.TxState) []byte { return []byte(s) }

func (c *Coordinator) setTxState(txHash types.Hash, state types.TxState) error {
	return c.store.Set(kv.TxStateKey(txHash), txStateValue(state))
}

// TxState returns the persisted lifecycle state for txHash, or
// PENDING_VALIDATION if none has been written yet.
func (c *Coordinator) TxState(txHash types.Hash) (types.TxState, error) {
	raw, err := c.store.Get(kv.TxStateKey(txHash))
	if err != nil {
		return "", err
	}
	if len(raw) == 0 {
		return types.TxPendingValidation, nil
	}
	return types.TxState(raw), nil
}

// Initiate builds the §3 ValidationRequest for a sender's claimed score,
// selects validators, persists PENDING_VALIDATION and a session
// snapshot, and broadcasts the challenge to every connected peer — never
// addressed to the selected set (spec.md §4.5 rationale).
func (c *Coordinator) Initiate(ctx context.Context, txHash types.Hash, sender types.Address, claimed types.ClaimedScoreRecord, blockHeight uint64, eligiblePool []types.Address) (types.ValidationRequest, error) {
	now := time.Now()
	req := types.ValidationRequest{
		TxHash:         txHash,
		Sender:         sender,
		ClaimedScore:   claimed,
		ChallengeNonce: DeterministicNonce(txHash, blockHeight, now),
		Timestamp:      now,
		BlockHeight:    blockHeight,
	}

	selected := SelectValidators(txHash, blockHeight, eligiblePool, c.sybil)

	c.mu.Lock()
	c.sessions[txHash] = newSession(req, selected)
	c.mu.Unlock()

	if err := c.setTxState(txHash, types.TxPendingValidation); err != nil {
		return req, err
	}
	if err := c.persistSession(txHash); err != nil {
		return req, err
	}

	if c.network != nil {
		env, err := p2p.NewEnvelope(p2p.MsgValidationChallenge, req)
		if err != nil {
			return req, err
		}
		_ = c.network.ForEachPeer(ctx, func(ctx context.Context, peer p2p.Peer) error {
			return c.network.PushToPeer(ctx, peer.ID, env)
		})
	}
	return req, nil
}

// ProcessResponse validates and records one validator's signed response:
// rejects duplicates, bad signatures, and nonce mismatches (spec.md
// §4.5 response processing).
func (c *Coordinator) ProcessResponse(resp types.ValidationResponse) (bool, error) {
	c.mu.Lock()
	sess, ok := c.sessions[resp.TxHash]
	c.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("hatconsensus: no active session for %s", resp.TxHash)
	}

	if !c.rateLimiter.Allow(resp.Validator, time.Now()) {
		return false, nil
	}
	if !bytes.Equal(resp.ChallengeNonce.Bytes(), sess.request.ChallengeNonce.Bytes()) {
		return false, nil
	}
	if !signing.VerifyResponse(resp) {
		return false, nil
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return false, nil
	}
	if _, dup := sess.responses[resp.Validator]; dup {
		return false, nil
	}
	if !sess.selected[resp.Validator] {
		return false, nil
	}
	sess.responses[resp.Validator] = resp
	if len(sess.responses) >= MinValidators && !sess.closed {
		sess.closed = true
		close(sess.done)
	}
	return true, nil
}

// Await blocks until MinValidators responses are collected or
// ValidationTimeout fires, then tallies, persists the transaction state
// transition, and updates validator accuracy stats.
func (c *Coordinator) Await(ctx context.Context, txHash types.Hash) (types.ConsensusResult, error) {
	c.mu.Lock()
	sess, ok := c.sessions[txHash]
	c.mu.Unlock()
	if !ok {
		return types.ConsensusResult{}, fmt.Errorf("hatconsensus: no active session for %s", txHash)
	}

	timer := time.NewTimer(ValidationTimeout)
	defer timer.Stop()
	select {
	case <-sess.done:
	case <-timer.C:
	case <-ctx.Done():
	}

	sess.mu.Lock()
	if !sess.closed {
		sess.closed = true
		close(sess.done)
	}
	sess.mu.Unlock()

	responses := sess.responseList()
	result := DetermineConsensus(txHash, responses)

	attack, attackReason := c.attackSignals(responses)
	if attack {
		// §4.7: any one coordinated-attack signal forces DAO escalation,
		// overriding whatever the weighted tally would otherwise decide.
		result.Reached = false
		result.Approved = false
		result.NeedsDAO = true
	}

	now := time.Now()
	c.penalizeNonResponders(sess, now)
	c.updateAccuracy(result, now)

	switch {
	case result.Reached && result.Approved:
		_ = c.setTxState(txHash, types.TxValidated)
	case result.Reached && !result.Approved:
		_ = c.setTxState(txHash, types.TxRejected)
		c.recordFraudAttempt(txHash, sess.request, responses, now)
	default:
		reason := attackReason
		if reason == "" {
			reason = "consensus not reached: insufficient WoT coverage or below the 70% threshold"
		}
		c.packageDispute(ctx, txHash, sess.request, responses, reason)
	}

	c.mu.Lock()
	delete(c.sessions, txHash)
	c.mu.Unlock()

	return result, nil
}

// recordFraudAttempt writes a graded fraud record (C12) for a session
// that reached a REJECT consensus, per §4.6's "reached-REJECT consensus"
// origin. Claims failing pre-write validation are dropped silently, per
// §7 — the caller never sees a partially-applied fraud record.
func (c *Coordinator) recordFraudAttempt(txHash types.Hash, req types.ValidationRequest, responses []types.ValidationResponse, now time.Time) {
	if c.fraud == nil {
		return
	}
	actual := averageCalculatedScore(responses)
	var stake uint64
	var cluster fraud.ClusterContext
	if c.sybil != nil {
		stake = c.sybil.Stake(req.Sender)
	}
	if c.clusterer != nil {
		if wc := c.clusterer.ClusterOf(req.Sender); wc != nil {
			cluster.ClusterSize = wc.Size()
			if wc.Size() > 1 {
				c.evaluateSybilCluster(wc, now)
			}
		}
	}
	candidate := fraud.Candidate{
		Origin:        fraud.OriginRejectConsensus,
		TxHash:        txHash,
		Fraudster:     req.Sender,
		Claimed:       req.ClaimedScore.FinalScore,
		Actual:        actual,
		Timestamp:     now,
		BlockHeight:   req.BlockHeight,
		CurrentHeight: req.BlockHeight,
	}
	if _, _, err := c.fraud.Record(candidate, stake, now, cluster); err != nil {
		// Validation failure (score delta too small, Sybil self-accusation
		// filter, stale timestamp, ...) — log-only per §7, never surface.
		return
	}
}

// packageDispute hands the session's evidence to C11 for governance
// review when automated tallying can't decide.
func (c *Coordinator) packageDispute(ctx context.Context, txHash types.Hash, req types.ValidationRequest, responses []types.ValidationResponse, reason string) {
	if c.dao == nil {
		return
	}
	_, _ = c.dao.Package(ctx, txHash, req.Sender, req.ClaimedScore, responses, reason)
}

// evaluateSybilCluster runs the sender's wallet cluster through C9's
// risk scoring using the reputation registry for the homogeneity
// signal. Cluster age and transaction-volume signals aren't available
// to the Coordinator, so this is necessarily a conservative estimate —
// it only ever adds confidence on top of what a genuinely clustered,
// reputation-homogeneous group already earns.
func (c *Coordinator) evaluateSybilCluster(wc *types.WalletCluster, now time.Time) {
	if c.sybilMon == nil {
		return
	}
	signals := sybil.ClusterSignals{ClusterSize: wc.Size()}
	if c.reputation != nil {
		reps := make([]float64, 0, len(wc.MemberList))
		for _, m := range wc.MemberList {
			if score, err := c.reputation.Final(m); err == nil {
				reps = append(reps, score)
			}
		}
		signals.MemberReputations = reps
	}
	_, _ = c.sybilMon.Evaluate(wc.MemberList, signals, now)
}

func averageCalculatedScore(responses []types.ValidationResponse) float64 {
	if len(responses) == 0 {
		return 0
	}
	var sum float64
	for _, r := range responses {
		sum += r.CalculatedScore
	}
	return sum / float64(len(responses))
}

func (c *Coordinator) penalizeNonResponders(sess *session, now time.Time) {
	if c.validators == nil {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	for addr := range sess.selected {
		if _, responded := sess.responses[addr]; !responded {
			_ = c.validators.RecordAbstention(addr, now)
		}
	}
}

func (c *Coordinator) updateAccuracy(result types.ConsensusResult, now time.Time) {
	if c.validators == nil || !result.Reached {
		return
	}
	for _, r := range result.Responses {
		votedWithConsensus := (result.Approved && r.Vote == types.VoteAccept) || (!result.Approved && r.Vote == types.VoteReject)
		if votedWithConsensus {
			_ = c.validators.RecordAccurate(r.Validator, now)
		} else if r.Vote != types.VoteAbstain {
			_ = c.validators.RecordInaccurate(r.Validator, now)
		}
	}
}

// CoordinatedAttackSignals evaluates the §4.7 session-level Sybil
// signals against the responses collected so far for txHash.
func (c *Coordinator) CoordinatedAttackSignals(txHash types.Hash) (bool, string) {
	c.mu.Lock()
	sess, ok := c.sessions[txHash]
	c.mu.Unlock()
	if !ok {
		return false, ""
	}
	return c.attackSignals(sess.responseList())
}

// attackSignals builds the §4.7 per-response signal set and evaluates
// it. Shared by the public CoordinatedAttackSignals accessor and Await's
// internal escalation check.
func (c *Coordinator) attackSignals(responses []types.ValidationResponse) (bool, string) {
	signals := make([]sybil.ResponseSignal, 0, len(responses))
	for _, r := range responses {
		cluster := r.Validator
		if c.clusterer != nil {
			if wc := c.clusterer.ClusterOf(r.Validator); wc != nil && wc.Size() > 1 {
				cluster = canonicalMember(wc)
			}
		}
		stats, _ := c.validators.Get(r.Validator)
		vrep := 0.0
		if stats != nil {
			vrep = stats.ValidatorReputation
		}
		signals = append(signals, sybil.ResponseSignal{
			Validator:           r.Validator,
			WalletCluster:       cluster,
			Vote:                r.Vote,
			FinalScore:          r.CalculatedScore,
			BehaviorScore:       boolToFloat(r.ComponentStatus.Behavior),
			ValidatorReputation: vrep,
			Timestamp:           r.Timestamp,
		})
	}
	return sybil.CoordinatedAttackDetected(signals)
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func canonicalMember(wc *types.WalletCluster) types.Address {
	min := wc.MemberList[0]
	for _, m := range wc.MemberList[1:] {
		if bytes.Compare(m.Bytes(), min.Bytes()) < 0 {
			min = m
		}
	}
	return min
}

func (c *Coordinator) persistSession(txHash types.Hash) error {
	c.mu.Lock()
	sess, ok := c.sessions[txHash]
	c.mu.Unlock()
	if !ok {
		return nil
	}
	raw, err := json.Marshal(sess.request)
	if err != nil {
		return fmt.Errorf("hatconsensus: marshal session: %w", err)
	}
	return c.store.Set(kv.SessionKey(txHash), raw)
}
