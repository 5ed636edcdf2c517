// Package services defines shared utilities consumed by the splitter
// components and their external tool integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run identifiers, loop phases, and segment
//     ordinals for logging.
//   - Structured error markers plus the Wrap helper so failures from yt-dlp,
//     ffmpeg, ImageMagick, and tesseract are classified consistently.
//   - The Executor abstraction that streams output from external tools line by
//     line and keeps command execution testable.
//
// Use these helpers when wiring new tool integrations so operational behaviour
// (error handling, observability) stays uniform across the pipeline.
package services
