// Package scanner provides recursive directory tree queries.
//
// It computes total size, file count, nesting depth, the smallest and largest
// file, and the files of an exact size below a directory. Every query walks
// the tree afresh; nothing is cached between calls.
//
// Traversal is depth-first, visiting the children of each directory in
// ascending byte-wise order of their names and finishing a subdirectory's
// subtree before moving to its next sibling. Ties in the smallest and largest
// queries resolve to the first file in that order. Only regular files count
// as files; symlinks are never followed and other entry kinds are skipped.
//
// Failures abort the walk and are reported as *PathError values matching
// ErrNotFound, ErrPermissionDenied or ErrNotADirectory via errors.Is.
package scanner
