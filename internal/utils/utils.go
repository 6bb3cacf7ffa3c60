package utils

// Value dereferences a pointer, returning the zero value when nil.
func Value[T any](v *T) T {
	if v == nil {
		return *new(T)
	}
	return *v
}

// Ptr returns a pointer to the given value.
func Ptr[T any](v T) *T {
	return &v
}

// ToStringSlice converts a slice of any to the string members it contains.
func ToStringSlice(slice []any) []string {
	stringSlice := make([]string, 0)
	for _, v := range slice {
		if s, ok := v.(string); ok {
			stringSlice = append(stringSlice, s)
		}
	}
	return stringSlice
}
