package utils

import (
	"github.com/emirpasic/gods/sets/linkedhashset"
)

// List2set 去重并保持第一次出现的顺序
func List2set[T any](list []T) *linkedhashset.Set {
	set := linkedhashset.New()
	for _, value := range list {
		set.Add(value)
	}
	return set
}

// DedupeStrings 去重并保持第一次出现的顺序
func DedupeStrings(list []string) []string {
	set := List2set(list)
	answer := make([]string, 0, set.Size())
	for _, value := range set.Values() {
		answer = append(answer, value.(string))
	}
	return answer
}
