package live

import "fmt"

const emptyInventory = "the pantry is currently empty"

// SystemInstruction builds the assistant persona around an inventory summary.
func SystemInstruction(inventorySummary string) string {
	if inventorySummary == "" {
		inventorySummary = emptyInventory
	}
	return fmt.Sprintf("You are the Expronix AI Voice Assistant. "+
		"Inventory context: %s. "+
		"Always respond via audio. Be brief, helpful, and friendly. "+
		"Provide tips on food storage, quick meal ideas, or ways to reduce waste based on the inventory.",
		inventorySummary)
}
