package subgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"rainlang.xyz/rainmeta/magic"
	"rainlang.xyz/rainmeta/metaerr"
	"rainlang.xyz/rainmeta/metahash"
	"rainlang.xyz/rainmeta/storage"
)

// Check inspects the bytes an endpoint returned. An error rejects that
// endpoint's answer, so a slower endpoint can still win.
type Check func(data []byte) error

func runChecks(data []byte, checks []Check) error {
	for _, c := range checks {
		if err := c(data); err != nil {
			return err
		}
	}
	return nil
}

// Record type names returned in __typename.
const (
	TypeRainMeta    = "RainMetaV1"
	TypeContentMeta = "ContentMetaV1"
)

func parseQueryHash(s, what string) (metahash.Hash, error) {
	h, err := metahash.Parse(s)
	if err != nil {
		return metahash.Zero, metaerr.Wrap(metaerr.KindInvalidInput, "SG-QUERY", "invalid "+what, err)
	}
	return h, nil
}

// MetaQuery returns the query for the raw bytes of the meta with the given hash.
func MetaQuery(hash string) (string, error) {
	h, err := parseQueryHash(hash, "meta hash")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`{ meta(id: "%s") { rawBytes } }`, h), nil
}

// DeployerMetaQuery returns the query for the constructor meta of the deployer
// whose bytecode meta has the given hash.
func DeployerMetaQuery(bytecodeHash string) (string, error) {
	h, err := parseQueryHash(bytecodeHash, "bytecode hash")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`{ expressionDeployers(where: {meta_: {id: "%s"}}, first: 1) { constructorMetaHash constructorMeta } }`, h), nil
}

// RecordQuery returns the query for a meta record together with the deployers
// that reference it.
func RecordQuery(hash string) (string, error) {
	h, err := parseQueryHash(hash, "meta hash")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`{
  meta(id: "%s") {
    __typename
    id
    ... on RainMetaV1 {
      sequence(where: {or: [{magicNumber: "%d"}, {magicNumber: "%d"}]}) { id payload magicNumber }
    }
    ... on ContentMetaV1 { payload magicNumber }
    contracts {
      ... on ExpressionDeployer {
        id
        deployedBytecode
        deployTransaction { timestamp }
        meta(where: {magicNumber: "%d"}) { payload }
      }
    }
  }
}`, h, uint64(magic.ContractMetaV1), uint64(magic.AuthoringMetaV1), uint64(magic.SolidityABIV2)), nil
}

func decodeHexField(name, s string) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") {
		return nil, fmt.Errorf("%s: expected 0x-prefixed hex", name)
	}
	b, err := metahash.DecodeHex(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return b, nil
}

// Search returns the raw bytes stored under hash by the first endpoint whose
// answer hashes to hash and passes every check.
func (c *Client) Search(ctx context.Context, endpoints []string, hash metahash.Hash, checks ...Check) ([]byte, error) {
	query, err := MetaQuery(hash.String())
	if err != nil {
		return nil, err
	}
	return FirstSuccess(ctx, endpoints, c.timeout, func(ctx context.Context, ep string) ([]byte, error) {
		var res struct {
			Meta *struct {
				RawBytes string `json:"rawBytes"`
			} `json:"meta"`
		}
		if err := c.Query(ctx, ep, query, &res); err != nil {
			c.log.Debug("subgraph search failed", zap.String("endpoint", ep), zap.Stringer("hash", hash), zap.Error(err))
			return nil, err
		}
		if res.Meta == nil {
			return nil, ErrNoRecord
		}
		b, err := decodeHexField("rawBytes", res.Meta.RawBytes)
		if err != nil {
			return nil, err
		}
		if err := storage.Verify(hash, b); err != nil {
			c.log.Debug("subgraph returned bytes under the wrong hash", zap.String("endpoint", ep), zap.Stringer("hash", hash))
			return nil, err
		}
		if err := runChecks(b, checks); err != nil {
			c.log.Debug("subgraph answer rejected", zap.String("endpoint", ep), zap.Stringer("hash", hash), zap.Error(err))
			return nil, err
		}
		return b, nil
	})
}

// DeployerMeta is the constructor meta of an expression deployer.
type DeployerMeta struct {
	Hash     metahash.Hash
	RawBytes []byte
}

// SearchDeployerMeta returns the constructor meta of the deployer whose
// bytecode meta has hash bytecodeHash. An answer counts only if the
// constructor meta hashes to its claimed hash and passes every check.
func (c *Client) SearchDeployerMeta(ctx context.Context, endpoints []string, bytecodeHash metahash.Hash, checks ...Check) (DeployerMeta, error) {
	query, err := DeployerMetaQuery(bytecodeHash.String())
	if err != nil {
		return DeployerMeta{}, err
	}
	return FirstSuccess(ctx, endpoints, c.timeout, func(ctx context.Context, ep string) (DeployerMeta, error) {
		var res struct {
			ExpressionDeployers []struct {
				ConstructorMetaHash string `json:"constructorMetaHash"`
				ConstructorMeta     string `json:"constructorMeta"`
			} `json:"expressionDeployers"`
		}
		if err := c.Query(ctx, ep, query, &res); err != nil {
			c.log.Debug("subgraph deployer search failed", zap.String("endpoint", ep), zap.Error(err))
			return DeployerMeta{}, err
		}
		if len(res.ExpressionDeployers) == 0 {
			return DeployerMeta{}, ErrNoRecord
		}
		d := res.ExpressionDeployers[0]
		h, err := metahash.Parse(d.ConstructorMetaHash)
		if err != nil {
			return DeployerMeta{}, fmt.Errorf("constructorMetaHash: %w", err)
		}
		raw, err := decodeHexField("constructorMeta", d.ConstructorMeta)
		if err != nil {
			return DeployerMeta{}, err
		}
		if len(raw) == 0 {
			return DeployerMeta{}, fmt.Errorf("constructorMeta is empty")
		}
		if err := storage.Verify(h, raw); err != nil {
			c.log.Debug("subgraph constructor meta does not match its hash", zap.String("endpoint", ep), zap.Stringer("hash", h))
			return DeployerMeta{}, err
		}
		if err := runChecks(raw, checks); err != nil {
			c.log.Debug("subgraph answer rejected", zap.String("endpoint", ep), zap.Stringer("hash", h), zap.Error(err))
			return DeployerMeta{}, err
		}
		return DeployerMeta{Hash: h, RawBytes: raw}, nil
	})
}

// SequenceItem is one envelope of a RainMetaV1 record.
type SequenceItem struct {
	ID          metahash.Hash
	Payload     []byte
	MagicNumber magic.Number
}

// Contract is an expression deployer that references a record. Timestamp is
// the deploy transaction's block timestamp and orders merged results.
type Contract struct {
	ID               common.Address
	DeployedBytecode []byte
	Timestamp        uint64
	AbiMeta          []byte
}

// Record is a meta record with the deployers that reference it.
type Record struct {
	Typename string
	ID       metahash.Hash

	// Set for RainMetaV1.
	Sequence []SequenceItem

	// Set for ContentMetaV1.
	Payload     []byte
	MagicNumber magic.Number

	Contracts []Contract
}

type wireRecord struct {
	Typename string `json:"__typename"`
	ID       string `json:"id"`
	Sequence *[]struct {
		ID          string          `json:"id"`
		Payload     string          `json:"payload"`
		MagicNumber json.RawMessage `json:"magicNumber"`
	} `json:"sequence"`
	Payload     string            `json:"payload"`
	MagicNumber json.RawMessage   `json:"magicNumber"`
	Contracts   []json.RawMessage `json:"contracts"`
}

type wireContract struct {
	ID                *string `json:"id"`
	DeployedBytecode  string  `json:"deployedBytecode"`
	DeployTransaction *struct {
		Timestamp json.RawMessage `json:"timestamp"`
	} `json:"deployTransaction"`
	Meta []struct {
		Payload string `json:"payload"`
	} `json:"meta"`
}

// bigIntText reads a GraphQL BigInt, which arrives as a decimal string, or a
// plain JSON number.
func bigIntText(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	return strings.Trim(s, `"`)
}

func parseMagic(raw json.RawMessage) (magic.Number, error) {
	return magic.ParseString(bigIntText(raw))
}

func (w *wireRecord) toRecord() (*Record, error) {
	id, err := metahash.Parse(w.ID)
	if err != nil {
		return nil, fmt.Errorf("id: %w", err)
	}
	r := &Record{Typename: w.Typename, ID: id}
	switch w.Typename {
	case TypeRainMeta:
		if w.Sequence == nil || len(*w.Sequence) == 0 {
			return nil, fmt.Errorf("sequence is empty")
		}
		for i, s := range *w.Sequence {
			sid, err := metahash.Parse(s.ID)
			if err != nil {
				return nil, fmt.Errorf("sequence[%d].id: %w", i, err)
			}
			payload, err := decodeHexField("payload", s.Payload)
			if err != nil {
				return nil, fmt.Errorf("sequence[%d]: %w", i, err)
			}
			n, err := parseMagic(s.MagicNumber)
			if err != nil {
				return nil, fmt.Errorf("sequence[%d].magicNumber: %w", i, err)
			}
			r.Sequence = append(r.Sequence, SequenceItem{ID: sid, Payload: payload, MagicNumber: n})
		}
	case TypeContentMeta:
		payload, err := decodeHexField("payload", w.Payload)
		if err != nil {
			return nil, err
		}
		n, err := parseMagic(w.MagicNumber)
		if err != nil {
			return nil, fmt.Errorf("magicNumber: %w", err)
		}
		r.Payload, r.MagicNumber = payload, n
	default:
		return nil, fmt.Errorf("unexpected record type %q", w.Typename)
	}

	if len(w.Contracts) == 0 {
		return nil, fmt.Errorf("record has no contracts")
	}
	for i, raw := range w.Contracts {
		var wc wireContract
		if err := json.Unmarshal(raw, &wc); err != nil {
			return nil, fmt.Errorf("contracts[%d]: %w", i, err)
		}
		// Contracts that are not expression deployers come back empty.
		if wc.ID == nil {
			continue
		}
		c, err := wc.toContract()
		if err != nil {
			return nil, fmt.Errorf("contracts[%d]: %w", i, err)
		}
		r.Contracts = append(r.Contracts, c)
	}
	return r, nil
}

func (wc *wireContract) toContract() (Contract, error) {
	if !common.IsHexAddress(*wc.ID) || !strings.HasPrefix(*wc.ID, "0x") {
		return Contract{}, fmt.Errorf("id %q is not an address", *wc.ID)
	}
	code, err := decodeHexField("deployedBytecode", wc.DeployedBytecode)
	if err != nil {
		return Contract{}, err
	}
	if len(wc.Meta) != 1 {
		return Contract{}, fmt.Errorf("expected exactly one abi meta, got %d", len(wc.Meta))
	}
	abiMeta, err := decodeHexField("meta.payload", wc.Meta[0].Payload)
	if err != nil {
		return Contract{}, err
	}
	var ts uint64
	if wc.DeployTransaction != nil {
		ts, err = strconv.ParseUint(bigIntText(wc.DeployTransaction.Timestamp), 10, 64)
		if err != nil {
			return Contract{}, fmt.Errorf("deployTransaction.timestamp: %w", err)
		}
	}
	return Contract{
		ID:               common.HexToAddress(*wc.ID),
		DeployedBytecode: code,
		Timestamp:        ts,
		AbiMeta:          abiMeta,
	}, nil
}

// SearchRecord asks every endpoint for the record stored under hash and
// merges the valid answers: the first answer in endpoint order is the base and
// contracts from the others are added when their address is new. Contracts are
// sorted by deploy timestamp, newest first.
func (c *Client) SearchRecord(ctx context.Context, endpoints []string, hash metahash.Hash) (*Record, error) {
	query, err := RecordQuery(hash.String())
	if err != nil {
		return nil, err
	}
	fetch := func(ctx context.Context, ep string) (*Record, error) {
		var res struct {
			Meta *wireRecord `json:"meta"`
		}
		if err := c.Query(ctx, ep, query, &res); err != nil {
			c.log.Debug("subgraph record search failed", zap.String("endpoint", ep), zap.Error(err))
			return nil, err
		}
		if res.Meta == nil {
			return nil, ErrNoRecord
		}
		r, err := res.Meta.toRecord()
		if err != nil {
			c.log.Debug("subgraph returned malformed record", zap.String("endpoint", ep), zap.Error(err))
			return nil, err
		}
		return r, nil
	}
	return AllSettledMerge(ctx, endpoints, c.timeout, fetch, MergeRecords)
}

// MergeRecords unions the contracts of records into the first record and
// sorts them newest first. Contracts with equal timestamps keep their order.
func MergeRecords(records []*Record) (*Record, error) {
	if len(records) == 0 {
		return nil, ErrNoRecord
	}
	base := *records[0]
	base.Contracts = append([]Contract(nil), records[0].Contracts...)
	seen := make(map[common.Address]bool, len(base.Contracts))
	for _, c := range base.Contracts {
		seen[c.ID] = true
	}
	for _, r := range records[1:] {
		for _, c := range r.Contracts {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			base.Contracts = append(base.Contracts, c)
		}
	}
	sort.SliceStable(base.Contracts, func(i, j int) bool {
		return base.Contracts[i].Timestamp > base.Contracts[j].Timestamp
	})
	return &base, nil
}
