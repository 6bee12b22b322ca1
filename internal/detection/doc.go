// Package detection implements the gradient-based circle Hough transform.
//
// A Detector turns a gray image into a list of circles through seven stages:
//
//  1. Gradients: Gaussian blur followed by Sobel or Scharr filtering
//  2. Edges: Canny-style hysteresis thresholding, with thresholds derived from
//     the gradient histogram when none are configured
//  3. Edge map filtering: isolated edge pixels are removed
//  4. Center voting: every edge point votes along its gradient line, on both
//     sides, for all radii in the configured range. Local maxima of the
//     accumulator above CenterThresh become center candidates
//  5. Center refinement: every candidate is moved to the vote centroid of its
//     3x3 window, then to the least squares intersection of the nearby
//     gradient lines
//  6. Radius voting: for every refined center, edge points whose gradient
//     is aligned with the radial direction vote for their distance. Radii
//     whose votes per pixel of visible arc reach CircleProbaThresh become
//     circle candidates
//  7. Merging: candidates with close centers and radii are greedily merged,
//     the one with the most votes absorbing the others
//
// # Coordinate System
//
// Circle centers are r2.Point values where X is the column and Y the row of
// the pixel, origin at the top-left pixel center.
//
// # Determinism
//
// Voting runs in parallel but accumulates integers, and every ordering is
// explicit (row-major candidates, stable sorts by votes), so two runs on the
// same image with the same configuration return identical results.
//
// # Configuration
//
// Params holds every threshold. It can be read from and written to JSON
// documents using the field names of the reference configuration files, for
// example:
//
//	{
//	  "filteringAndGradientType": "gaussianblur+sobel-filtering",
//	  "gaussianKernelSize": 5,
//	  "gaussianStdev": 1.0,
//	  "radiusLimits": [10, 80],
//	  "centerThresh": 50,
//	  "circleProbabilityThreshold": 0.9
//	}
//
// Invalid values are rejected when the configuration is loaded or set, never
// during detection.
package detection
