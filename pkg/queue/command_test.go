package queue

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/axiomex/matchengine/pkg/app/core/model"
)

func TestDecode_Place(t *testing.T) {
	id := uuid.New()
	userID := uuid.New()
	body := `{"type":"place","order":{"id":"` + id.String() + `","user_id":"` + userID.String() +
		`","side":"buy","volume":"1.5","remaining_volume":"1.5","price":"10000","base_currency":"BTC","quote_currency":"USDT"}}`

	now := time.Unix(100, 0)
	cmd, err := Decode([]byte(body), now, 7)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if cmd.Type != CommandPlace {
		t.Fatalf("Type = %v, want CommandPlace", cmd.Type)
	}
	o := cmd.Order
	if o.ID != id || o.UserID != userID {
		t.Errorf("id/user_id not decoded correctly: %+v", o)
	}
	if o.Side != model.SideBuy {
		t.Errorf("Side = %v, want SideBuy", o.Side)
	}
	if o.Base != "BTC" || o.Quote != "USDT" {
		t.Errorf("pair = %s/%s, want BTC/USDT", o.Base, o.Quote)
	}
	if !o.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", o.CreatedAt, now)
	}
	if o.Sequence != 7 {
		t.Errorf("Sequence = %d, want 7", o.Sequence)
	}
}

func TestDecode_Cancel(t *testing.T) {
	id1, id2 := uuid.New(), uuid.New()
	body := `{"type":"cancel","order_ids":["` + id1.String() + `","` + id2.String() + `"]}`

	cmd, err := Decode([]byte(body), time.Now(), 1)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if cmd.Type != CommandCancel {
		t.Fatalf("Type = %v, want CommandCancel", cmd.Type)
	}
	if len(cmd.OrderIDs) != 2 || cmd.OrderIDs[0] != id1 || cmd.OrderIDs[1] != id2 {
		t.Errorf("OrderIDs = %v, want [%s %s]", cmd.OrderIDs, id1, id2)
	}
}

func TestDecode_CancelBatchLimit(t *testing.T) {
	ids := make([]string, 101)
	for i := range ids {
		ids[i] = `"` + uuid.New().String() + `"`
	}
	body := `{"type":"cancel","order_ids":[` + strings.Join(ids, ",") + `]}`

	if _, err := Decode([]byte(body), time.Now(), 1); err == nil {
		t.Fatal("expected an error exceeding the 100-id cancel batch limit")
	}
}

func TestDecode_RejectsMalformedJSON(t *testing.T) {
	if _, err := Decode([]byte(`{not json`), time.Now(), 1); err == nil {
		t.Fatal("expected a decode error for malformed JSON")
	}
}

func TestDecode_RejectsUnknownType(t *testing.T) {
	if _, err := Decode([]byte(`{"type":"withdraw"}`), time.Now(), 1); err == nil {
		t.Fatal("expected a decode error for an unknown command type")
	}
}

func TestDecode_RejectsInvalidSide(t *testing.T) {
	body := `{"type":"place","order":{"side":"sideways","volume":"1","remaining_volume":"1","price":"1","base_currency":"BTC","quote_currency":"USDT"}}`
	if _, err := Decode([]byte(body), time.Now(), 1); err == nil {
		t.Fatal("expected a decode error for an invalid side")
	}
}

func TestDecode_RejectsPlaceMissingOrder(t *testing.T) {
	if _, err := Decode([]byte(`{"type":"place"}`), time.Now(), 1); err == nil {
		t.Fatal("expected a decode error for a place command with no order")
	}
}

func TestDecode_RejectsCancelMissingIDs(t *testing.T) {
	if _, err := Decode([]byte(`{"type":"cancel","order_ids":[]}`), time.Now(), 1); err == nil {
		t.Fatal("expected a decode error for a cancel command with no ids")
	}
}
