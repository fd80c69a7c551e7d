// Package inventory holds the pantry items the voice assistant is told
// about when a session starts.
package inventory

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

type StorageLocation string

const (
	StorageFridge  StorageLocation = "Fridge"
	StoragePantry  StorageLocation = "Pantry"
	StorageFreezer StorageLocation = "Freezer"
)

type FoodItem struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Category   string          `json:"category"`
	ExpiryDate time.Time       `json:"expiryDate"`
	Storage    StorageLocation `json:"storage"`
	Quantity   float64         `json:"quantity"`
	Unit       string          `json:"unit"`
	AddedAt    time.Time       `json:"addedAt"`
}

// Load reads a JSON array of items. An empty path yields an empty
// inventory.
func Load(path string) ([]FoodItem, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory: %w", err)
	}

	var items []FoodItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse inventory %s: %w", path, err)
	}
	return items, nil
}

// Summary lists item names separated by ", ", in inventory order.
func Summary(items []FoodItem) string {
	names := make([]string, 0, len(items))
	for _, item := range items {
		if name := strings.TrimSpace(item.Name); name != "" {
			names = append(names, name)
		}
	}
	return strings.Join(names, ", ")
}
