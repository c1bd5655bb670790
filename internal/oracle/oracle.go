// Package oracle implements the optional external SRC-20 ledger-hash
// oracle client (spec.md §6, SPEC_FULL.md supplemented feature 4): an
// HTTP GET keyed by block height, whose response carries the oracle's own
// computed ledger hash and balance data for independent cross-validation
// against internal/ledgerhash's result. A mismatch is reported, never
// fatal, unless the caller's policy says otherwise (spec.md §4.7).
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/btcstamps/stampindexer/internal/ledgerhash"
)

// response is the oracle's wire shape: { data: { hash, balance_data } }.
type response struct {
	Data struct {
		Hash        string `json:"hash"`
		BalanceData string `json:"balance_data"`
	} `json:"data"`
}

// Client queries the external oracle.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: 15 * time.Second}}
}

// Fetch retrieves the oracle's reported hash and balance_data string for
// blockHeight.
func (c *Client) Fetch(ctx context.Context, blockHeight int64) (hash, balanceData string, err error) {
	url := fmt.Sprintf("%s?block_height=%d", c.baseURL, blockHeight)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("oracle fetch(%d): %w", blockHeight, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("read oracle response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("oracle fetch(%d): status %d: %s", blockHeight, resp.StatusCode, string(body))
	}

	var r response
	if err := json.Unmarshal(body, &r); err != nil {
		return "", "", fmt.Errorf("unmarshal oracle response: %w", err)
	}
	return r.Data.Hash, r.Data.BalanceData, nil
}

// OracleMismatch describes a disagreement between the locally computed ledger
// hash and the oracle's reported one.
type OracleMismatch struct {
	BlockHeight int64
	LocalHash   string
	OracleHash  string
}

func (m *OracleMismatch) Error() string {
	return fmt.Sprintf("ledger hash mismatch at block %d: local=%s oracle=%s", m.BlockHeight, m.LocalHash, m.OracleHash)
}

// FailurePolicy decides whether a OracleMismatch aborts processing.
type FailurePolicy int

const (
	// ReportOnly logs the mismatch and continues — spec.md §4.7's
	// default ("reported but not fatal").
	ReportOnly FailurePolicy = iota
	// Fatal returns the OracleMismatch as an error, for callers configured to
	// treat oracle disagreement as a hard stop.
	Fatal
)

// Compare fetches the oracle's hash for blockHeight and compares it
// against localHash (internal/ledgerhash's computed value). It always
// logs a mismatch; policy controls whether it's also returned as an
// error.
func Compare(ctx context.Context, client *Client, blockHeight int64, localHash string, policy FailurePolicy, logger *zap.Logger) error {
	oracleHash, _, err := client.Fetch(ctx, blockHeight)
	if err != nil {
		logger.Warn("oracle fetch failed, skipping cross-validation", zap.Int64("height", blockHeight), zap.Error(err))
		return nil
	}

	if oracleHash == localHash {
		return nil
	}

	mismatch := &OracleMismatch{BlockHeight: blockHeight, LocalHash: localHash, OracleHash: oracleHash}
	logger.Warn("ledger hash mismatch against external oracle",
		zap.Int64("height", blockHeight),
		zap.String("local_hash", localHash),
		zap.String("oracle_hash", oracleHash))

	if policy == Fatal {
		return mismatch
	}
	return nil
}

// ParseBalanceData parses the oracle's balance_data string using the same
// canonical format internal/ledgerhash produces, so a caller can diff
// individual rows instead of just comparing the final hash.
func ParseBalanceData(balanceData string) []ledgerhash.Entry {
	return ledgerhash.ParseCanonicalString(balanceData)
}

// Difference describes one (tick, address) row where two balance_data
// strings disagree, grounded on src20.py's compare_balances /
// compare_string_formats: that reference walks both balance sets keyed by
// (tick, address) and reports rows present on only one side or present on
// both with differing amounts.
type Difference struct {
	Tick      string
	Address   string
	LocalAmt  string
	RemoteAmt string
}

// Diff compares two canonical balance_data strings row by row and returns
// every (tick, address) where they disagree — missing on one side, or
// present on both with a different amount, showing which rows drove a
// hash mismatch rather than just that one occurred. Neither Compare nor
// the CLI calls it.
func Diff(local, remote string) []Difference {
	localEntries := ledgerhash.ParseCanonicalString(local)
	remoteEntries := ledgerhash.ParseCanonicalString(remote)

	localByKey := make(map[string]ledgerhash.Entry, len(localEntries))
	for _, e := range localEntries {
		localByKey[e.Tick+"_"+e.Address] = e
	}
	remoteByKey := make(map[string]ledgerhash.Entry, len(remoteEntries))
	for _, e := range remoteEntries {
		remoteByKey[e.Tick+"_"+e.Address] = e
	}

	keys := make(map[string]struct{}, len(localByKey)+len(remoteByKey))
	for k := range localByKey {
		keys[k] = struct{}{}
	}
	for k := range remoteByKey {
		keys[k] = struct{}{}
	}

	sortedKeys := make([]string, 0, len(keys))
	for k := range keys {
		sortedKeys = append(sortedKeys, k)
	}
	sort.Strings(sortedKeys)

	var diffs []Difference
	for _, k := range sortedKeys {
		l, lok := localByKey[k]
		r, rok := remoteByKey[k]
		if lok && rok && l.Amt == r.Amt {
			continue
		}
		d := Difference{}
		if lok {
			d.Tick, d.Address, d.LocalAmt = l.Tick, l.Address, l.Amt
		} else {
			d.Tick, d.Address, d.RemoteAmt = r.Tick, r.Address, r.Amt
		}
		if rok {
			d.RemoteAmt = r.Amt
		}
		diffs = append(diffs, d)
	}
	return diffs
}
