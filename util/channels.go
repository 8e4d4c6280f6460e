package util

// CollectFromChannel collects remaining items from a CLOSED channel
func CollectFromChannel[T any](closedChan <-chan T) []T {
	collected := make([]T, 0, len(closedChan))
	for item := range closedChan {
		collected = append(collected, item)
	}
	return collected
}
