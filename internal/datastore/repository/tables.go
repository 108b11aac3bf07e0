package repository

// Table names.
const (
	tableParkGroups = "park_groups"
	tableParks      = "parks"
	tableThemeAreas = "theme_areas"
	tableRides      = "rides"
	tableSamples    = "queue_time_samples"
)

// idBatchSize limits the number of ids per IN clause to stay under SQLite's
// 999 parameter limit.
const idBatchSize = 400

// chunks splits ids into slices of at most size elements.
func chunks[T any](ids []T, size int) [][]T {
	if len(ids) == 0 {
		return nil
	}
	out := make([][]T, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		out = append(out, ids[start:end])
	}
	return out
}
