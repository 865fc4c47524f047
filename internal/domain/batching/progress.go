package batching

// InvalidRating is returned when a rating is requested for an unknown user.
const InvalidRating = -1.0

// ProgressPercent returns completedClaims / totalBatches * 100. A job with no
// batches reports 0.
func ProgressPercent(completedClaims, totalBatches int) float64 {
	if totalBatches <= 0 {
		return 0
	}
	return float64(completedClaims) / float64(totalBatches) * 100
}

// Rating returns ratingSum / completedCount, or 0 when nothing is completed.
func Rating(ratingSum float64, completedCount int) float64 {
	if completedCount <= 0 {
		return 0
	}
	return ratingSum / float64(completedCount)
}
