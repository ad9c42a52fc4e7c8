package pull

// EntitySpec describes one entry in the dependency-ordered pull plan: a
// referenced table is always pulled before a referencing one.
type EntitySpec struct {
	// EntityType names both the sync_state row and the cloud endpoint
	// suffix ("/api/hub/sync/{EntityType}").
	EntityType string
	// FullReplace is true for entities whose cloud ids may be recycled
	// (notably pizza pricing): the handler deletes the whole table then
	// inserts the new rows in one transaction, instead of upserting by id.
	FullReplace bool
}

// Plan is the static, dependency-ordered sequence of entities pulled every
// cycle. Runtime picks the same order every time: categories before
// products, taxes before products (products reference both), customers are
// independent, and pizza_size_prices is full-replace last.
func Plan() []EntitySpec {
	return []EntitySpec{
		{EntityType: "categories"},
		{EntityType: "taxes"},
		{EntityType: "products"},
		{EntityType: "customers"},
		{EntityType: "pizza_size_prices", FullReplace: true},
	}
}
