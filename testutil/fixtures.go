// Package testutil holds fixtures and helpers shared across the core
// packages' test suites, grounded on the teacher's own testutil package
// (sample-object builders reused by every internal/* test file) but
// retargeted from mining-pool shares/block-templates to this indexer's
// transaction candidates and SRC-20 payloads.
package testutil

import "github.com/btcstamps/stampindexer/internal/upstream"

// SampleTransactionCandidate returns a minimal, valid upstream transaction
// candidate (spec.md §3) for a plain DEPLOY payload, with overrideable
// fields supplied via opts.
func SampleTransactionCandidate(opts ...func(*upstream.TransactionCandidate)) upstream.TransactionCandidate {
	tc := upstream.TransactionCandidate{
		BlockHeight:   800000,
		BlockTime:     1700000000,
		TxIndex:       0,
		TxHash:        "deadbeefcafefeed00000000000000000000000000000000000000000000",
		SourceAddress: "bc1qsourceaddressxxxxxxxxxxxxxxxxxxxxxxx",
		DestAddress:   "bc1qdestaddressxxxxxxxxxxxxxxxxxxxxxxxxx",
		CPID:          "A123456789012345678",
		RawPayload:    []byte(`{"p":"src-20","op":"DEPLOY","tick":"test","max":"1000","lim":"100","dec":"0"}`),
	}
	for _, o := range opts {
		o(&tc)
	}
	return tc
}

// SampleDeployPayload returns a well-formed SRC-20 DEPLOY JSON payload for
// the given tick.
func SampleDeployPayload(tick, max, lim string) []byte {
	return []byte(`{"p":"src-20","op":"DEPLOY","tick":"` + tick + `","max":"` + max + `","lim":"` + lim + `"}`)
}

// SampleMintPayload returns a well-formed SRC-20 MINT JSON payload.
func SampleMintPayload(tick, amt string) []byte {
	return []byte(`{"p":"src-20","op":"MINT","tick":"` + tick + `","amt":"` + amt + `"}`)
}

// SampleTransferPayload returns a well-formed SRC-20 TRANSFER JSON
// payload.
func SampleTransferPayload(tick, amt string) []byte {
	return []byte(`{"p":"src-20","op":"TRANSFER","tick":"` + tick + `","amt":"` + amt + `"}`)
}
