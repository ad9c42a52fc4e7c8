package pull

import "testing"

func TestColumnNameMechanicalRule(t *testing.T) {
	tests := []struct {
		entityType, field, want string
	}{
		{"categories", "sortOrder", "sort_order"},
		{"categories", "name", "name"},
		{"products", "categoryId", "category_id"},
		{"products", "orderTypePrices", "order_type_prices"},
	}
	for _, tt := range tests {
		if got := ColumnName(tt.entityType, tt.field); got != tt.want {
			t.Errorf("ColumnName(%q, %q) = %q, want %q", tt.entityType, tt.field, got, tt.want)
		}
	}
}

func TestColumnNameOverride(t *testing.T) {
	if got := ColumnName("products", "basePrice"); got != "base_price" {
		t.Errorf("ColumnName(products, basePrice) = %q, want base_price", got)
	}
	if got := ColumnName("sale", "orderType"); got != "order_type" {
		t.Errorf("ColumnName(sale, orderType) = %q, want order_type", got)
	}
}

func TestCoerceValueBooleans(t *testing.T) {
	if got := CoerceValue(true); got != 1 {
		t.Errorf("CoerceValue(true) = %v, want 1", got)
	}
	if got := CoerceValue(false); got != 0 {
		t.Errorf("CoerceValue(false) = %v, want 0", got)
	}
}

func TestCoerceValueArraysAndObjectsStringify(t *testing.T) {
	got := CoerceValue([]any{"a", "b"})
	if got != `["a","b"]` {
		t.Errorf("CoerceValue([a b]) = %v, want [\"a\",\"b\"]", got)
	}
}

func TestCoerceValuePassthrough(t *testing.T) {
	if got := CoerceValue("hello"); got != "hello" {
		t.Errorf("CoerceValue(hello) = %v, want hello", got)
	}
	if got := CoerceValue(float64(42)); got != float64(42) {
		t.Errorf("CoerceValue(42) = %v, want 42", got)
	}
}
