// Package imaging provides the raster operations of the sheet grader.
//
// It covers decoding scans from disk, turning them into binary ink masks and
// drawing the grading decisions back onto the page for review. Everything
// else in the grader works on the masks produced here.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - For regions, Min is inclusive and Max is exclusive, as with image.Rectangle
//
// Masks, overlays and zoomed crops always have their origin at (0,0), even
// when the source image is a sub-image with an offset.
//
// # Masks
//
// A mask is an *image.Gray holding only two values: Foreground (0xFF) for ink
// and 0 for paper. Use IsForeground rather than reading Pix directly so that
// out-of-range points are treated as paper.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Every other function is
// stateless and never modifies its input image.
//
// # Error Handling
//
// Load reports every failure, whether the file is missing or the bytes are not
// an image, as ErrUnreadable wrapping the cause. Callers test for it with
// errors.Is.
//
// # Performance Considerations
//
// For repeated operations on the same image, use ImageCache to avoid redundant
// disk reads. Large scans may consume significant memory when cached.
// Consider using Evict() or Clear() to manage memory for long-running processes.
package imaging
