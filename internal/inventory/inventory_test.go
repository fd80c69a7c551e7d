package inventory

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSummary(t *testing.T) {
	testCases := []struct {
		name     string
		items    []FoodItem
		expected string
	}{
		{name: "empty", items: nil, expected: ""},
		{name: "single", items: []FoodItem{{Name: "Milk"}}, expected: "Milk"},
		{
			name:     "keeps order and skips blank names",
			items:    []FoodItem{{Name: "Milk"}, {Name: " "}, {Name: "Eggs"}, {Name: "Spinach"}},
			expected: "Milk, Eggs, Spinach",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := Summary(testCase.items); got != testCase.expected {
				t.Fatalf("expected %q, got %q", testCase.expected, got)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pantry.json")
	data := `[
		{"id": "1", "name": "Milk", "category": "Dairy", "expiryDate": "2026-10-20T00:00:00Z",
		 "storage": "Fridge", "quantity": 1, "unit": "l", "addedAt": "2026-10-10T08:30:00Z"},
		{"id": "2", "name": "Rice", "category": "Grains", "expiryDate": "2027-05-01T00:00:00Z",
		 "storage": "Pantry", "quantity": 2.5, "unit": "kg", "addedAt": "2026-09-01T12:00:00Z"}
	]`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	items, err := Load(path)
	if err != nil {
		t.Fatalf("expected inventory to load, got %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Storage != StorageFridge || items[1].Quantity != 2.5 {
		t.Fatalf("unexpected items: %+v", items)
	}
	if !items[0].ExpiryDate.Equal(time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected expiry date %s", items[0].ExpiryDate)
	}
	if got := Summary(items); got != "Milk, Rice" {
		t.Fatalf("expected summary %q, got %q", "Milk, Rice", got)
	}
}

func TestLoadErrors(t *testing.T) {
	if items, err := Load(""); err != nil || items != nil {
		t.Fatalf("expected empty path to give an empty inventory, got %v %v", items, err)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected an error for a missing file")
	}

	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte(`{"not": "a list"}`), 0o600); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error for malformed inventory")
	}
}
