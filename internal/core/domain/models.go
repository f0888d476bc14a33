package domain

// AllModels returns every persisted model in migration order
func AllModels() []interface{} {
	return []interface{}{
		&Project{},
		&Session{},
		&WeightEntry{},
		&Generation{},
	}
}
