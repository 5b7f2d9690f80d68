package proofs

import (
	"bytes"
	"context"
	"sync"

	"github.com/epochledger/epochledger/pkg/ledgerErrors"
	"github.com/epochledger/epochledger/pkg/payouts"
	"github.com/epochledger/epochledger/pkg/storage"
	"github.com/epochledger/epochledger/pkg/types/numbers"
	"github.com/epochledger/epochledger/pkg/utils"
	"github.com/pkg/errors"
	"github.com/wealdtech/go-merkletree/v2"
	"github.com/wealdtech/go-merkletree/v2/keccak256"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/zap"
)

// DefaultCachedEpochs is how many epoch trees are kept before the least recently used is dropped.
const DefaultCachedEpochs = 64

// AllocationProof proves that a user's allocation leaf is part of an epoch's allocation set.
type AllocationProof struct {
	EpochId           uint64   `json:"epochId"`
	UserId            string   `json:"userId"`
	ProposedUnits     string   `json:"proposedUnits"`
	AllocationSetHash string   `json:"allocationSetHash"`
	Leaf              string   `json:"leaf"`
	LeafIndex         uint64   `json:"leafIndex"`
	Hashes            []string `json:"hashes"`
}

type ProofData struct {
	EpochId     uint64
	Tree        *merkletree.MerkleTree
	Allocations map[string]int64
}

// AllocationProofsStore builds and caches allocation trees for closed epochs.
// Closed epochs never change, so a cached tree never goes stale; the cache is
// only bounded, least recently used first.
type AllocationProofsStore struct {
	store  storage.LedgerStore
	logger *zap.Logger
	nodeId string

	mu              sync.Mutex
	proofData       *orderedmap.OrderedMap[uint64, *ProofData]
	maxCachedEpochs int
}

func NewAllocationProofsStore(store storage.LedgerStore, nodeId string, l *zap.Logger) *AllocationProofsStore {
	return &AllocationProofsStore{
		store:     store,
		logger:    l,
		nodeId:    nodeId,
		proofData:       orderedmap.New[uint64, *ProofData](),
		maxCachedEpochs: DefaultCachedEpochs,
	}
}

func (aps *AllocationProofsStore) cached(epochId uint64) (*ProofData, bool) {
	aps.mu.Lock()
	defer aps.mu.Unlock()
	data, ok := aps.proofData.Get(epochId)
	if ok {
		_ = aps.proofData.MoveToBack(epochId)
	}
	return data, ok
}

func (aps *AllocationProofsStore) cache(data *ProofData) {
	aps.mu.Lock()
	defer aps.mu.Unlock()
	aps.proofData.Set(data.EpochId, data)
	_ = aps.proofData.MoveToBack(data.EpochId)
	for aps.proofData.Len() > aps.maxCachedEpochs {
		oldest := aps.proofData.Oldest()
		aps.proofData.Delete(oldest.Key)
		aps.logger.Sugar().Debugw("Evicted cached allocation tree", zap.Uint64("epochId", oldest.Key))
	}
}

func (aps *AllocationProofsStore) getProofDataForEpoch(ctx context.Context, epochId uint64) (*ProofData, error) {
	if data, ok := aps.cached(epochId); ok {
		return data, nil
	}

	epoch, err := aps.store.GetEpoch(ctx, aps.nodeId, epochId)
	if err != nil {
		return nil, err
	}
	if epoch == nil || !epoch.IsClosed() {
		return nil, ledgerErrors.NotFound(ledgerErrors.ErrEpochNotFound, "epoch %d", epochId)
	}

	statement, err := aps.store.GetPayoutStatement(ctx, aps.nodeId, epochId)
	if err != nil {
		return nil, err
	}
	if statement == nil {
		return nil, ledgerErrors.New(ledgerErrors.Kind_Internal, ledgerErrors.ErrStatementNotFound, "closed epoch %d", epochId)
	}

	allocations, err := aps.store.ListAllocations(ctx, aps.nodeId, epochId)
	if err != nil {
		return nil, err
	}
	tree, err := payouts.MerkleizeAllocations(epochId, allocations)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to merkleize allocations for epoch %d", epochId)
	}

	root := utils.ConvertBytesToString(tree.Root())
	if root != statement.AllocationSetHash {
		aps.logger.Sugar().Errorw("Allocation set does not match published statement",
			zap.Uint64("epochId", epochId),
			zap.String("computed", root),
			zap.String("published", statement.AllocationSetHash),
		)
		return nil, ledgerErrors.New(ledgerErrors.Kind_Internal, ledgerErrors.ErrAllocationSetMismatch, "epoch %d", epochId)
	}

	data := &ProofData{
		EpochId:     epochId,
		Tree:        tree,
		Allocations: make(map[string]int64, len(allocations)),
	}
	for _, a := range allocations {
		data.Allocations[a.UserId] = a.ProposedUnits
	}

	aps.cache(data)
	return data, nil
}

// GenerateAllocationProof returns the inclusion proof for userId in a closed epoch.
func (aps *AllocationProofsStore) GenerateAllocationProof(ctx context.Context, epochId uint64, userId string) (*AllocationProof, error) {
	data, err := aps.getProofDataForEpoch(ctx, epochId)
	if err != nil {
		return nil, err
	}
	units, ok := data.Allocations[userId]
	if !ok {
		return nil, ledgerErrors.NotFound(ledgerErrors.ErrAllocationNotFound, "user %s in epoch %d", userId, epochId)
	}
	return GenerateProofFromTree(data.Tree, epochId, userId, units)
}

// GenerateProofFromTree builds the proof for a single leaf of an allocation tree.
func GenerateProofFromTree(tree *merkletree.MerkleTree, epochId uint64, userId string, proposedUnits int64) (*AllocationProof, error) {
	leaf := payouts.EncodeAllocationLeaf(userId, proposedUnits)
	proof, err := tree.GenerateProof(leaf, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to generate proof for user %s", userId)
	}

	hashes := make([]string, 0, len(proof.Hashes))
	for _, h := range proof.Hashes {
		hashes = append(hashes, utils.ConvertBytesToString(h))
	}
	return &AllocationProof{
		EpochId:           epochId,
		UserId:            userId,
		ProposedUnits:     utils.FormatInt(proposedUnits),
		AllocationSetHash: utils.ConvertBytesToString(tree.Root()),
		Leaf:              utils.ConvertBytesToString(leaf),
		LeafIndex:         proof.Index,
		Hashes:            hashes,
	}, nil
}

// VerifyAllocationProof checks the proof against its own allocation set hash.
// Callers comparing against a published statement must also compare the hash itself.
func VerifyAllocationProof(p *AllocationProof) (bool, error) {
	leaf, err := utils.ConvertStringToBytes(p.Leaf)
	if err != nil {
		return false, err
	}
	units, err := numbers.ParseIntegerString(p.ProposedUnits)
	if err != nil {
		return false, errors.Wrapf(err, "invalid proposed units")
	}
	if !bytes.Equal(leaf, payouts.EncodeAllocationLeaf(p.UserId, units)) {
		return false, nil
	}
	root, err := utils.ConvertStringToBytes(p.AllocationSetHash)
	if err != nil {
		return false, err
	}
	hashes := make([][]byte, 0, len(p.Hashes))
	for _, h := range p.Hashes {
		b, err := utils.ConvertStringToBytes(h)
		if err != nil {
			return false, err
		}
		hashes = append(hashes, b)
	}

	proof := &merkletree.Proof{
		Hashes: hashes,
		Index:  p.LeafIndex,
	}
	return merkletree.VerifyProofUsing(leaf, false, proof, [][]byte{root}, keccak256.New())
}
