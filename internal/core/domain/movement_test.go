package domain

import "testing"

func TestResolveDirection(t *testing.T) {
	cases := []struct {
		typ      MovementType
		explicit Direction
		want     Direction
		ok       bool
	}{
		{MovementStockIn, "", DirectionIn, true},
		{MovementSale, "", DirectionOut, true},
		{MovementRemoval, "", DirectionOut, true},
		{MovementAdjustment, DirectionIn, DirectionIn, true},
		{MovementAdjustment, DirectionOut, DirectionOut, true},
		{MovementAdjustment, "", "", false},
		{MovementAdjustment, "sideways", "", false},
		{MovementTransfer, "", DirectionOut, true},
		{MovementTransfer, DirectionIn, DirectionIn, true},
		{"RESTOCK", "", "", false},
	}
	for _, tc := range cases {
		got, ok := ResolveDirection(tc.typ, tc.explicit)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ResolveDirection(%s, %q) = (%q, %v), want (%q, %v)",
				tc.typ, tc.explicit, got, ok, tc.want, tc.ok)
		}
	}
}

func TestMovementDelta(t *testing.T) {
	in := Movement{Type: MovementStockIn, Direction: DirectionIn, Quantity: 5}
	if in.Delta() != 5 {
		t.Errorf("expected +5, got %d", in.Delta())
	}
	out := Movement{Type: MovementSale, Direction: DirectionOut, Quantity: 5}
	if out.Delta() != -5 {
		t.Errorf("expected -5, got %d", out.Delta())
	}
}

func TestMovementTypeValid(t *testing.T) {
	for _, typ := range []MovementType{MovementStockIn, MovementSale, MovementAdjustment, MovementRemoval, MovementTransfer} {
		if !typ.Valid() {
			t.Errorf("%s should be valid", typ)
		}
	}
	if MovementType("RESTOCK").Valid() {
		t.Error("RESTOCK should be invalid")
	}
}
