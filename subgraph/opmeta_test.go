package subgraph

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"rainlang.xyz/rainmeta/metaerr"
)

const deployerAddr = "0xAbCdEf0123456789aBCDef0123456789abcDEF01"

func opMetaListBody(hex string) string {
	return `{"data":{"expressionDeployers":[{"opmeta":"` + hex + `"}]}}`
}

func opMetaDeployerBody(hex string) string {
	return `{"data":{"expressionDeployer":{"opmeta":"` + hex + `"}}}`
}

func TestOpMetaQueryBuilders(t *testing.T) {
	for _, bad := range []string{
		"",
		strings.TrimPrefix(deployerAddr, "0x"),
		"0x1234",
		"0x" + strings.Repeat("zz", 20),
	} {
		if _, err := OpMetaByAddressQuery(bad); !metaerr.IsKind(err, metaerr.KindInvalidInput) {
			t.Fatalf("OpMetaByAddressQuery(%q): expected InvalidInput, got %v", bad, err)
		}
	}
	q, err := OpMetaByAddressQuery(deployerAddr)
	if err != nil {
		t.Fatalf("OpMetaByAddressQuery: %v", err)
	}
	if !strings.Contains(q, strings.ToLower(deployerAddr)) || !strings.Contains(q, "opmeta") {
		t.Fatalf("unexpected query %q", q)
	}

	if _, err := OpMetaQuery("0x1234"); !metaerr.IsKind(err, metaerr.KindInvalidInput) {
		t.Fatalf("OpMetaQuery: expected InvalidInput, got %v", err)
	}
	q, err = OpMetaQuery(testHash.String())
	if err != nil || !strings.Contains(q, testHash.String()) || !strings.Contains(q, "expressionDeployers") {
		t.Fatalf("OpMetaQuery = %q, %v", q, err)
	}
}

func TestSearchOpMeta_EndpointOrder(t *testing.T) {
	var q atomic.Value
	empty := graphServer(t, http.StatusOK, `{"data":{"expressionDeployers":[]}}`, &q)
	null := graphServer(t, http.StatusOK, `{"data":{"expressionDeployers":[{"opmeta":null}]}}`, nil)
	slowFirst := delayedServer(t, 50*time.Millisecond, opMetaListBody("0xaa01"))
	fastSecond := graphServer(t, http.StatusOK, opMetaListBody("0xbb02"), nil)
	endpoints := []string{empty.URL, null.URL, slowFirst.URL, fastSecond.URL}

	c := NewClient(WithTimeout(2 * time.Second))
	got, err := c.SearchOpMeta(context.Background(), endpoints, testHash)
	if err != nil {
		t.Fatalf("SearchOpMeta: %v", err)
	}
	if string(got) != "\xaa\x01" {
		t.Fatalf("SearchOpMeta = %x, want the first endpoint's answer", got)
	}
	if s, _ := q.Load().(string); !strings.Contains(s, testHash.String()) {
		t.Fatalf("unexpected query %q", s)
	}

	notFirst := func(b []byte) error {
		if b[0] == 0xaa {
			return errors.New("rejected")
		}
		return nil
	}
	got, err = c.SearchOpMeta(context.Background(), endpoints, testHash, notFirst)
	if err != nil || string(got) != "\xbb\x02" {
		t.Fatalf("SearchOpMeta with check = %x, %v", got, err)
	}

	_, err = c.SearchOpMeta(context.Background(), []string{empty.URL, null.URL}, testHash)
	if !metaerr.IsKind(err, metaerr.KindNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestOpMetaByDeployer(t *testing.T) {
	var q atomic.Value
	srv := graphServer(t, http.StatusOK, opMetaDeployerBody("0xcafe"), &q)
	c := NewClient(WithTimeout(2 * time.Second))

	got, err := c.OpMetaByDeployer(context.Background(), deployerAddr, srv.URL)
	if err != nil {
		t.Fatalf("OpMetaByDeployer: %v", err)
	}
	if string(got) != "\xca\xfe" {
		t.Fatalf("OpMetaByDeployer = %x", got)
	}
	if s, _ := q.Load().(string); !strings.Contains(s, strings.ToLower(deployerAddr)) {
		t.Fatalf("query did not carry the lower-cased address: %q", s)
	}

	missing := graphServer(t, http.StatusOK, `{"data":{"expressionDeployer":null}}`, nil)
	if _, err := c.OpMetaByDeployer(context.Background(), deployerAddr, missing.URL); !metaerr.IsKind(err, metaerr.KindNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if _, err := c.OpMetaByDeployer(context.Background(), "0x1234", srv.URL); !metaerr.IsKind(err, metaerr.KindInvalidInput) {
		t.Fatalf("expected InvalidInput for a short address, got %v", err)
	}
	for _, source := range []string{"solana", "ftp://example.com/graph", "https://"} {
		if _, err := c.OpMetaByDeployer(context.Background(), deployerAddr, source); !metaerr.IsKind(err, metaerr.KindInvalidInput) {
			t.Fatalf("source %q: expected InvalidInput, got %v", source, err)
		}
	}
}

func TestSubgraphsFor(t *testing.T) {
	def, err := SubgraphsFor("")
	if err != nil {
		t.Fatalf("SubgraphsFor(\"\"): %v", err)
	}
	mumbai, _ := KnownSubgraphs("mumbai")
	if len(def) != len(mumbai) || def[0] != mumbai[0] {
		t.Fatalf("default source = %v, want mumbai %v", def, mumbai)
	}
	if byID, err := SubgraphsFor("0x89"); err != nil || !IsKnownSubgraph(byID[0]) {
		t.Fatalf("SubgraphsFor(0x89) = %v, %v", byID, err)
	}
	if u, err := SubgraphsFor("http://127.0.0.1:8000/subgraphs/name/x"); err != nil || len(u) != 1 {
		t.Fatalf("SubgraphsFor(url) = %v, %v", u, err)
	}
}

func TestAllKnownSubgraphs(t *testing.T) {
	mumbai, _ := KnownSubgraphs("mumbai")
	all := AllKnownSubgraphs("http://local/graph", mumbai[0], "")
	if all[0] != "http://local/graph" || all[1] != mumbai[0] {
		t.Fatalf("extras must come first: %v", all)
	}
	seen := map[string]bool{}
	for _, u := range all {
		if seen[u] {
			t.Fatalf("duplicate endpoint %s", u)
		}
		seen[u] = true
	}
	if len(all) != 7 {
		t.Fatalf("expected 6 known endpoints plus 1 extra, got %d", len(all))
	}
}
