// Package language resolves language codes and decides whether a string is
// already written in a target language's script.
package language
