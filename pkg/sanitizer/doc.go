// Package sanitizer provides input normalization for entity fields before
// validation and storage.
//
// All normalization functions are idempotent - applying them multiple times
// produces the same result. Functions handle invalid input gracefully,
// typically by returning empty strings or zero values rather than errors.
//
// Normalization includes:
//   - Names and identifiers: collapse inner whitespace, trim leading/trailing spaces
//   - Place capacities: clamp to the non-negative range
package sanitizer
