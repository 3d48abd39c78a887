// Package textutil normalises names and titles for comparison.
//
// FoldName produces the canonical form used for case-insensitive identity
// matching (NFKC plus Unicode case folding). SearchForm additionally
// transliterates to ASCII so titles written in different scripts can be
// ranked against each other, and TitleDistance orders search candidates.
package textutil
