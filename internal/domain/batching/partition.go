// Package batching holds the pure algorithms behind batch allocation:
// partitioning uploads into batches, availability filtering, consensus
// ranking of labels, progress and rating arithmetic. Nothing here touches
// storage or the clock.
package batching

// TotalBatches returns max(round(itemCount/batchSize), 1), rounding halves up.
// A non-positive batchSize is treated as 1.
func TotalBatches(itemCount, batchSize int) int {
	if batchSize < 1 {
		batchSize = 1
	}
	if itemCount < 0 {
		itemCount = 0
	}

	// round-half-up in integers: floor((2n + s) / 2s)
	total := (2*itemCount + batchSize) / (2 * batchSize)
	if total < 1 {
		return 1
	}
	return total
}

// BatchNumber assigns the item at upload position index to a batch,
// round-robin over totalBatches.
func BatchNumber(index, totalBatches int) int {
	if totalBatches < 1 {
		return 0
	}
	return index % totalBatches
}

// Partition returns the batch number of each of itemCount items in upload
// order, together with the number of batches used.
func Partition(itemCount, batchSize int) (assignments []int, totalBatches int) {
	totalBatches = TotalBatches(itemCount, batchSize)
	assignments = make([]int, itemCount)
	for i := range assignments {
		assignments[i] = BatchNumber(i, totalBatches)
	}
	return assignments, totalBatches
}
