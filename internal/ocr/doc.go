// Package ocr reads text out of fixed regions of a video frame.
//
// Regions are configured as fractions of the frame so one calibration works
// at any resolution. The Detector resolves them to pixels from the first frame
// it sees, crops with ImageMagick, runs tesseract, and cleans the result to
// single-line ASCII before any comparison happens.
package ocr
