// Package conv narrows integers for the binary formats and reports values
// that do not fit instead of truncating them.
package conv
