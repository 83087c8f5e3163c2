// Package sanitizer provides input normalization for catalog and account data.
//
// All normalization functions are idempotent - applying them multiple times produces
// the same result. Functions handle invalid input gracefully, typically by returning
// empty strings rather than errors; validation happens afterwards.
//
// Normalization includes:
//   - Titles, authors, names: collapse whitespace, trim leading/trailing spaces
//   - Categories: lowercase, words joined by a single underscore - "Science Fiction" becomes "science_fiction"
//   - ISBNs: uppercase, spaces and hyphens removed, copy suffixes ("-2") preserved
//   - Emails: trimmed and lowercased
package sanitizer
