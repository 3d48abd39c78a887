// Package quality scores a reconciled unit and keeps the review queue in
// step with the score.
package quality
