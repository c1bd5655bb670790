package blockmessages

import (
	"strings"
	"testing"

	"github.com/btcstamps/stampindexer/internal/activation"
)

func TestRecordSkipsFixedSkipTables(t *testing.T) {
	f := NewFeed(0)
	f.Record(Insert, "balances", map[string]interface{}{"address": "a"})
	f.Record(Insert, "blocks", map[string]interface{}{"hash": "b"})
	if len(f.Messages()) != 0 {
		t.Errorf("got %d messages, want 0 (both categories skipped)", len(f.Messages()))
	}
}

func TestRecordSkipsUpdateOnlyTablesOnlyForUpdate(t *testing.T) {
	f := NewFeed(0)
	f.Record(Update, "orders", map[string]interface{}{"id": 1})
	if len(f.Messages()) != 0 {
		t.Errorf("update on orders should be skipped, got %v", f.Messages())
	}

	f2 := NewFeed(0)
	f2.Record(Insert, "orders", map[string]interface{}{"id": 1})
	if len(f2.Messages()) != 1 {
		t.Errorf("insert on orders should NOT be skipped, got %v", f2.Messages())
	}
}

func TestRecordStripsAssetLongnamePreSubassets(t *testing.T) {
	f := NewFeed(activation.SubassetsHeight - 1)
	f.Record(Insert, "issuances", map[string]interface{}{"asset_longname": "FOO.BAR", "asset": "FOO"})
	if strings.Contains(f.Messages()[0], "asset_longname") {
		t.Errorf("asset_longname should be stripped pre-subassets, got %q", f.Messages()[0])
	}
}

func TestRecordKeepsAssetLongnamePostSubassets(t *testing.T) {
	f := NewFeed(activation.SubassetsHeight + 1)
	f.Record(Insert, "issuances", map[string]interface{}{"asset_longname": "FOO.BAR"})
	if !strings.Contains(f.Messages()[0], "asset_longname") {
		t.Errorf("asset_longname should be kept post-subassets, got %q", f.Messages()[0])
	}
}

func TestRecordStripsMemoPreEnhancedSends(t *testing.T) {
	f := NewFeed(activation.EnhancedSendsHeight - 1)
	f.Record(Insert, "sends", map[string]interface{}{"memo": "hello", "amount": 5})
	if strings.Contains(f.Messages()[0], "memo") {
		t.Errorf("memo should be stripped pre-enhanced_sends, got %q", f.Messages()[0])
	}
}

func TestHashDeterministicOverExecutionOrder(t *testing.T) {
	f1 := NewFeed(0)
	f1.Record(Insert, "issuances", map[string]interface{}{"asset": "A"})
	f1.Record(Insert, "issuances", map[string]interface{}{"asset": "B"})

	f2 := NewFeed(0)
	f2.Record(Insert, "issuances", map[string]interface{}{"asset": "B"})
	f2.Record(Insert, "issuances", map[string]interface{}{"asset": "A"})

	if f1.Hash() == f2.Hash() {
		t.Error("hash should depend on execution order, unlike ledgerhash's sorted entries")
	}
}
