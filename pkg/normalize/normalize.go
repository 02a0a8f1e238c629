// Copyright (c) 2026 Bazaar. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package normalize canonicalizes user-supplied identifiers before lookup or storage.
//
// # Usage
//
// Emails are the login key, so "Ａlice@Example.com " and "alice@example.com"
// must resolve to the same account. Usernames keep their case but are folded
// to a single Unicode form so visually identical names compare equal.
package normalize

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Email trims surrounding space, applies NFKC and case-folds the address.
//
// # Transformation Pipeline
//
// 1. Trims leading and trailing whitespace.
// 2. Normalizes to NFKC (full-width and compatibility forms collapse).
// 3. Applies Unicode case folding.
func Email(raw string) string {
	result := norm.NFKC.String(strings.TrimSpace(raw))

	// A Caser keeps state between calls and must not be shared across goroutines.
	return cases.Fold().String(result)
}

// Username trims surrounding space and applies NFKC without changing case.
func Username(raw string) string {
	return norm.NFKC.String(strings.TrimSpace(raw))
}
