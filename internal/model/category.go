package model

// Category is a named label for transactions. It is stored locally only
// and is not part of synchronization.
type Category struct {
	ID   string
	Name string
	Type TransactionType
}

// DefaultCategories are seeded into a fresh database.
var DefaultCategories = []string{"General", "Food", "Transport", "Shopping", "Bills", "Health", "Other"}
