package hatconsensus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/certen/trustvm/pkg/kv"
	"github.com/certen/trustvm/pkg/p2p"
	"github.com/certen/trustvm/pkg/reputation"
	"github.com/certen/trustvm/pkg/signing"
	"github.com/certen/trustvm/pkg/sybil"
	"github.com/certen/trustvm/pkg/trustgraph"
	"github.com/certen/trustvm/pkg/types"
	"github.com/certen/trustvm/pkg/wallet"
)

func seed(b byte) []byte {
	s := make([]byte, 32)
	for i := range s {
		s[i] = b
	}
	return s
}

func TestCoordinatorEndToEndApproval(t *testing.T) {
	store := kv.NewMemStore()
	reg := reputation.New(store)
	graph, err := trustgraph.New(store)
	if err != nil {
		t.Fatalf("trustgraph.New: %v", err)
	}
	clusterer, _ := wallet.New(store)
	validators := NewValidatorRegistry(store)
	detector := sybil.New()

	sender := types.BytesToAddress([]byte{0x01})
	senderScore, _ := reg.Get(sender)
	senderScore.Behavior = 80
	senderScore.WoT = 80
	senderScore.Economic = 80
	senderScore.Temporal = 80
	_ = reg.Put(senderScore)

	claimed := types.ClaimedScoreRecord{
		Address:  sender,
		Behavior: 0.80, WoT: 0.80, Economic: 0.80, Temporal: 0.80,
	}
	senderScore.Recompute()
	claimed.FinalScore = senderScore.Final

	net := p2p.NewMemoryNetwork()
	coord := New(store, net, validators, detector, clusterer)

	var keys [10]*signing.KeyPair
	var addrs []types.Address
	for i := 0; i < 10; i++ {
		kp, err := signing.GenerateKeyPair(seed(byte(i + 1)))
		if err != nil {
			t.Fatalf("GenerateKeyPair: %v", err)
		}
		keys[i] = kp
		a := signing.DeriveAddress(kp.Public)
		addrs = append(addrs, a)
		detector.UpdateStakeInfo(a, 10)

		if err := graph.AddEdge(types.TrustEdge{From: sender, To: a, Weight: 80, Timestamp: time.Now()}); err != nil {
			t.Fatalf("AddEdge: %v", err)
		}

		idx := i
		net.Join(p2p.Peer{ID: a}, func(env p2p.Envelope) {
			if env.Type != p2p.MsgValidationChallenge {
				return
			}
			deps := ResponderDeps{Reputation: reg, Trust: graph}
			resp, err := ComputeResponse(deps, mustUnmarshalRequest(t, env), addrs[idx], keys[idx], 100)
			if err != nil {
				t.Errorf("ComputeResponse: %v", err)
				return
			}
			if _, err := coord.ProcessResponse(resp); err != nil {
				t.Errorf("ProcessResponse: %v", err)
			}
		})
	}

	txHash := types.BytesToHash([]byte("tx-1"))
	req, err := coord.Initiate(context.Background(), txHash, sender, claimed, 100, addrs)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if req.Sender != sender {
		t.Fatalf("unexpected request sender %v", req.Sender)
	}

	result, err := coord.Await(context.Background(), txHash)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if !result.Reached || !result.Approved {
		t.Fatalf("expected approved consensus, got %+v", result)
	}

	state, err := coord.TxState(txHash)
	if err != nil {
		t.Fatalf("TxState: %v", err)
	}
	if state != types.TxValidated {
		t.Fatalf("expected VALIDATED, got %s", state)
	}
}

func mustUnmarshalRequest(t *testing.T, env p2p.Envelope) types.ValidationRequest {
	t.Helper()
	var req types.ValidationRequest
	if err := json.Unmarshal(env.Payload, &req); err != nil {
		t.Fatalf("unmarshal request: %v", err)
	}
	return req
}
