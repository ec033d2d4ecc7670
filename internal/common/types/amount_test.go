package types_test

import (
	"encoding/json"
	"testing"

	"eventmanagement/internal/common/types"
)

func TestAmount_JSON(t *testing.T) {
	t.Run("marshals as a bare number", func(t *testing.T) {
		payload, err := json.Marshal(struct {
			Amount types.Amount `json:"amount"`
		}{Amount: types.NewAmountFromFloat(100.0)})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(payload) != `{"amount":100}` {
			t.Errorf("expected bare number, got %s", payload)
		}
	})

	t.Run("accepts quoted and unquoted input", func(t *testing.T) {
		for _, raw := range []string{`"99.95"`, `99.95`} {
			var a types.Amount
			if err := json.Unmarshal([]byte(raw), &a); err != nil {
				t.Fatalf("unmarshal %s: %v", raw, err)
			}
			if !a.Equal(types.MustAmount("99.95")) {
				t.Errorf("expected 99.95, got %s", a)
			}
		}
	})
}

func TestAmount_String(t *testing.T) {
	if got := types.MustAmount("100").String(); got != "100.00" {
		t.Errorf("expected 100.00, got %s", got)
	}
}
