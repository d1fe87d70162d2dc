package utils

func Contains[T comparable](arr []T, item T) bool {
	for _, i := range arr {
		if i == item {
			return true
		}
	}

	return false
}

// AppendUnique appends item unless arr already holds it, keeping first-seen order.
func AppendUnique[T comparable](arr []T, item T) []T {
	if Contains(arr, item) {
		return arr
	}

	return append(arr, item)
}
