// Package textutil provides text processing utilities for lyric cleaning,
// normalization, fingerprinting, and similarity.
//
// The primary use cases are:
//   - Cleaning captured lyric lines (note glyphs, blank lines)
//   - Normalizing lyric text into stable cache keys
//   - Creating token-based fingerprints from text for comparison
//   - Computing cosine similarity between fingerprints for title flicker
//     smoothing
//
// Fingerprints use term frequency vectors normalized for efficient comparison.
// The tokenization process lowercases text, splits on non-alphanumeric characters,
// and filters tokens shorter than 3 characters.
package textutil
