package queue

// SizeMetrics describes how much an encode shrank a file.
type SizeMetrics struct {
	OriginalBytes    int64
	CompressedBytes  int64
	BytesSaved       int64
	PercentReduction float64
}

// ComputeSizeMetrics derives the saved bytes and reduction percentage. An
// original size of zero yields a zero percentage. Growth produces negative
// values.
func ComputeSizeMetrics(original, compressed int64) SizeMetrics {
	m := SizeMetrics{
		OriginalBytes:   original,
		CompressedBytes: compressed,
		BytesSaved:      original - compressed,
	}
	if original > 0 {
		m.PercentReduction = float64(m.BytesSaved) / float64(original) * 100
	}
	return m
}

// Apply copies the metrics onto a file result.
func (m SizeMetrics) Apply(result *FileResult) {
	if result == nil {
		return
	}
	result.OriginalSizeBytes = m.OriginalBytes
	result.CompressedSizeBytes = m.CompressedBytes
	result.BytesSaved = m.BytesSaved
	result.PercentReduction = m.PercentReduction
}
