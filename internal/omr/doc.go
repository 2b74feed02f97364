// Package omr turns a scanned answer sheet into a per-question response map.
//
// A Pipeline runs the stages in order:
//
//  1. Preprocess: imaging.Binarize produces an ink mask
//  2. Detect: a detection.Detector finds bubbles in the mask
//  3. SplitColumns: bubbles are partitioned into vertical answer columns
//  4. ClusterRows: each column is grouped into question rows by Y
//  5. IsFilled: every bubble's ink coverage is measured
//  6. LabelRow: each row resolves to one Symbol
//  7. MergeColumns: column results are numbered into one ResponseMap
//
// Every stage is a plain function of its inputs and Params, so a Pipeline is
// safe for concurrent use and returns identical results for identical input.
//
// No grid coordinates are hardcoded: rows and columns come from the detected
// geometry alone. Forms are expected to be reasonably upright; the pipeline
// does not deskew or dewarp.
package omr
