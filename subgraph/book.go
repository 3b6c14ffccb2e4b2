package subgraph

import "strings"

var (
	ethereumSubgraphs = []string{
		"https://api.thegraph.com/subgraphs/name/rainprotocol/interpreter-registry-ethereum",
		"https://api.thegraph.com/subgraphs/name/rainprotocol/interpreter-registry-np-eth",
	}
	polygonSubgraphs = []string{
		"https://api.thegraph.com/subgraphs/name/rainprotocol/interpreter-registry-polygon",
		"https://api.thegraph.com/subgraphs/name/rainprotocol/interpreter-registry-np-matic",
	}
	mumbaiSubgraphs = []string{
		"https://api.thegraph.com/subgraphs/name/rainprotocol/interpreter-registry",
		"https://api.thegraph.com/subgraphs/name/rainprotocol/interpreter-registry-np",
	}
)

var book = map[string][]string{
	"ethereum": ethereumSubgraphs,
	"mainnet":  ethereumSubgraphs,
	"1":        ethereumSubgraphs,
	"0x1":      ethereumSubgraphs,
	"polygon":  polygonSubgraphs,
	"matic":    polygonSubgraphs,
	"137":      polygonSubgraphs,
	"0x89":     polygonSubgraphs,
	"mumbai":   mumbaiSubgraphs,
	"maticmum": mumbaiSubgraphs,
	"80001":    mumbaiSubgraphs,
	"0x13881":  mumbaiSubgraphs,
}

// KnownSubgraphs returns the Rain subgraph endpoints for a chain, named or
// given by chain id in decimal or hex. ok is false for unknown chains.
func KnownSubgraphs(chain string) (urls []string, ok bool) {
	v, ok := book[strings.ToLower(strings.TrimSpace(chain))]
	if !ok {
		return nil, false
	}
	return append([]string(nil), v...), true
}

// IsKnownSubgraph reports whether url is one of the known endpoints.
func IsKnownSubgraph(url string) bool {
	for _, urls := range book {
		for _, u := range urls {
			if u == url {
				return true
			}
		}
	}
	return false
}

// AllKnownSubgraphs returns extra followed by every known endpoint, without
// duplicates.
func AllKnownSubgraphs(extra ...string) []string {
	seen := map[string]bool{}
	var out []string
	for _, urls := range [][]string{extra, ethereumSubgraphs, polygonSubgraphs, mumbaiSubgraphs} {
		for _, u := range urls {
			if u != "" && !seen[u] {
				seen[u] = true
				out = append(out, u)
			}
		}
	}
	return out
}
