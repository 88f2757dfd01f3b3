// Package textutil provides the name normalisation and containment heuristics
// shared by the lookup strategies.
//
// Names are lower-cased with Unicode-aware case mapping and stripped of every
// character that is not a letter or digit, so "Visual Studio Code" and
// "visual-studio-code" normalise to the same token.
package textutil
