// Package classifier scores media assets for content sensitivity.
//
// Scoring operates over a fixed, closed set of categories. Each category
// gets an integer score in [0,100] and an independently configured
// threshold; the overall score weights the maximum category score more
// heavily than the mean so one severe signal dominates a sea of low
// scores.
//
// The Classifier interface keeps the scorer pluggable: Mock synthesizes
// scores for environments without a vendor integration, Static replays
// fixed scores for tests, and a production implementation would call an
// external moderation service while preserving the same threshold
// contract.
package classifier
