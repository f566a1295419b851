// Package ml trains and serves the credit-score regressor and the
// loan-approval classifier. A TrainedPipeline bundles the fitted column
// transform with its model and is persisted as a single JSON artifact;
// ModelManager keeps a versioned registry of those artifacts.
package ml

import "credit-scoring/internal/features"

// Scorer is what the prediction service needs from a loaded model.
// *TrainedPipeline implements it.
type Scorer interface {
	// Kind reports which model this is.
	Kind() Kind

	// RequiredFields lists the request fields Derive reads.
	RequiredFields() []string

	// Derive turns a raw record into the feature vector Predict expects.
	Derive(rec features.ApplicantRecord) (features.FeatureVector, error)

	// Metadata describes how the model was trained.
	Metadata() Metadata

	// Predict returns a credit score or an approval probability.
	Predict(fv features.FeatureVector) (float64, error)
}

var _ Scorer = (*TrainedPipeline)(nil)
