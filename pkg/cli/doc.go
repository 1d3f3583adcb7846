// Package cli builds the cropadvisor command line programs.
//
// cropadvisor-api loads the artifacts from the models directory and serves
// them over HTTP until SIGINT or SIGTERM:
//
//	cropadvisor-api --models-dir ./models --port 5000
//
// cropadvisor-train fits the models from CSV datasets and writes them into the
// same directory:
//
//	cropadvisor-train --data Crop_recommendation.csv crop
//	cropadvisor-train --data Crop_recommendation_with_fertilizer.csv fertilizer
//	cropadvisor-train --data crop_yield.csv --plot all
//
// Settings for the server come from the environment (see pkg/config); flags
// override them.
package cli

var (
	// overridden during build with ldflags
	version = "dev"
	commit  = "unknown"
)

// Version returns the build version string.
func Version() string {
	return version + " (" + commit + ")"
}
