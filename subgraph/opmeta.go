package subgraph

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"rainlang.xyz/rainmeta/metaerr"
	"rainlang.xyz/rainmeta/metahash"
)

// DefaultChain is the chain OpMetaByDeployer queries when none is given.
const DefaultChain = "mumbai"

// OpMetaQuery returns the query for the op meta of the deployer whose meta
// has the given hash.
func OpMetaQuery(metaHash string) (string, error) {
	h, err := parseQueryHash(metaHash, "meta hash")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`{ expressionDeployers(where: {meta_: {id: "%s"}}, first: 1) { opmeta } }`, h), nil
}

// OpMetaByAddressQuery returns the query for the op meta of the deployer at
// address, which must be 0x-prefixed.
func OpMetaByAddressQuery(address string) (string, error) {
	if !strings.HasPrefix(address, "0x") || !common.IsHexAddress(address) {
		return "", metaerr.Newf(metaerr.KindInvalidInput, "SG-QUERY", "invalid deployer address %q", address)
	}
	return fmt.Sprintf(`{ expressionDeployer(id: "%s") { opmeta } }`, strings.ToLower(address)), nil
}

func decodeOpMeta(ep string, raw *string) ([]byte, error) {
	if raw == nil || *raw == "" || *raw == "0x" {
		return nil, ErrNoRecord
	}
	b, err := decodeHexField("opmeta", *raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ep, err)
	}
	return b, nil
}

// SearchOpMeta asks every endpoint for the op meta of the deployer whose meta
// has hash metaHash and returns the first valid answer in endpoint order.
func (c *Client) SearchOpMeta(ctx context.Context, endpoints []string, metaHash metahash.Hash, checks ...Check) ([]byte, error) {
	query, err := OpMetaQuery(metaHash.String())
	if err != nil {
		return nil, err
	}
	fetch := func(ctx context.Context, ep string) ([]byte, error) {
		var res struct {
			ExpressionDeployers []struct {
				OpMeta *string `json:"opmeta"`
			} `json:"expressionDeployers"`
		}
		if err := c.Query(ctx, ep, query, &res); err != nil {
			c.log.Debug("subgraph op meta search failed", zap.String("endpoint", ep), zap.Error(err))
			return nil, err
		}
		if len(res.ExpressionDeployers) == 0 {
			return nil, ErrNoRecord
		}
		b, err := decodeOpMeta(ep, res.ExpressionDeployers[0].OpMeta)
		if err != nil {
			return nil, err
		}
		if err := runChecks(b, checks); err != nil {
			c.log.Debug("subgraph answer rejected", zap.String("endpoint", ep), zap.Stringer("hash", metaHash), zap.Error(err))
			return nil, err
		}
		return b, nil
	}
	first := func(vs [][]byte) ([]byte, error) { return vs[0], nil }
	return AllSettledMerge(ctx, endpoints, c.timeout, fetch, first)
}

// SubgraphsFor resolves source to endpoints. source is a chain name or id
// known to KnownSubgraphs, or an http(s) endpoint URL. An empty source means
// DefaultChain.
func SubgraphsFor(source string) ([]string, error) {
	if source == "" {
		source = DefaultChain
	}
	if urls, ok := KnownSubgraphs(source); ok {
		return urls, nil
	}
	u, err := url.Parse(source)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, metaerr.Newf(metaerr.KindInvalidInput, "SG-ENDPOINTS", "no subgraph found for %q", source)
	}
	return []string{source}, nil
}

// OpMetaByDeployer returns the op meta of the deployer at address, looked up
// on the subgraphs of source (see SubgraphsFor).
func (c *Client) OpMetaByDeployer(ctx context.Context, address, source string, checks ...Check) ([]byte, error) {
	query, err := OpMetaByAddressQuery(address)
	if err != nil {
		return nil, err
	}
	endpoints, err := SubgraphsFor(source)
	if err != nil {
		return nil, err
	}
	return FirstSuccess(ctx, endpoints, c.timeout, func(ctx context.Context, ep string) ([]byte, error) {
		var res struct {
			ExpressionDeployer *struct {
				OpMeta *string `json:"opmeta"`
			} `json:"expressionDeployer"`
		}
		if err := c.Query(ctx, ep, query, &res); err != nil {
			c.log.Debug("subgraph op meta lookup failed", zap.String("endpoint", ep), zap.String("deployer", address), zap.Error(err))
			return nil, err
		}
		if res.ExpressionDeployer == nil {
			return nil, ErrNoRecord
		}
		b, err := decodeOpMeta(ep, res.ExpressionDeployer.OpMeta)
		if err != nil {
			return nil, err
		}
		if err := runChecks(b, checks); err != nil {
			return nil, err
		}
		return b, nil
	})
}
