// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package client

// Optimistic shows the result of next immediately, then runs commit. On
// success the committed value replaces the optimistic one; on failure the
// exact snapshot taken before next is restored and the error returned.
//
// get must return a value that next can transform without mutating shared
// state (a copy for slices).
func Optimistic[T any](get func() T, set func(T), next func(T) T, commit func() (T, error)) (T, error) {
	snapshot := get()
	set(next(snapshot))

	result, err := commit()
	if err != nil {
		set(snapshot)
		var zero T
		return zero, err
	}
	set(result)
	return result, nil
}
