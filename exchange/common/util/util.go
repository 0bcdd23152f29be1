package util

import "fmt"

// JSONMap represents a JSON object as a map.
type JSONMap = map[string]interface{}

// MapSlice transforms a slice of type T to a slice of type U using a mapping function.
func MapSlice[T any, U any](slice []T, mapFn func(T) U) []U {
	result := make([]U, 0, len(slice))
	for _, v := range slice {
		result = append(result, mapFn(v))
	}
	return result
}

// ShallowCopyObj returns a shallow copy of a JSON object.
func ShallowCopyObj(obj JSONMap) JSONMap {
	result := make(JSONMap, len(obj))
	for k, v := range obj {
		result[k] = v
	}
	return result
}

// StringsFromAny converts a JSON value that is either a string or an array of
// strings into a string slice.
func StringsFromAny(value interface{}) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case []interface{}:
		result := make([]string, 0, len(v))
		for _, entry := range v {
			s, ok := entry.(string)
			if !ok {
				return nil, fmt.Errorf("expected string entry, got %T", entry)
			}
			result = append(result, s)
		}
		return result, nil
	default:
		return nil, fmt.Errorf("expected string or array of strings, got %T", value)
	}
}
