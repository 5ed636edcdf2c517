// Package journal records runs and their exported segments in SQLite.
//
// The journal is an audit trail: the segmentation loop never reads from it.
// Each run gets a row when it starts; each closed segment gets a row when its
// export launches, updated again when the export finishes. The runs and
// segments CLI commands read it back.
package journal
