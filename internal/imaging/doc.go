// Package imaging provides photo loading, region cropping, region overlays
// and tensor conversion for the car part tools.
//
// All operations work with standard Go image.Image types and use a
// coordinate system where (0,0) is at the top-left corner, X increases
// rightward, and Y increases downward.
//
// # Coordinate System
//
// Detections are expressed in normalized coordinates (centre and size as
// fractions of the image). PixelRect converts them into pixel rectangles:
//   - (x1,y1) is inclusive (top-left), (x2,y2) is exclusive (bottom-right)
//   - The left and top edges round down, the right and bottom edges round up
//   - Rectangles are clamped to the image bounds
//
// # Overlays
//
// OverlayRegions outlines regions on a copy of the photo in their
// ClassColors and labels each box with its class name.
//
// # Tensor Layout
//
// ToTensorData resizes a photo to a square and writes it channel-major:
// all red values, then all green values, then all blue values, each scaled
// to [0, 1]. Alpha is discarded.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Individual image operations
// are stateless and can be called concurrently on different images.
//
// # Error Handling
//
// Functions return errors for invalid inputs such as:
//   - Regions lying completely outside the image
//   - Non-positive tensor sizes
//   - File I/O errors during image loading
//   - Encoding errors during image output
//
// # Performance Considerations
//
// The trainer reads every photo once per epoch. Use a bounded ImageCache
// (NewBoundedImageCache) when the training set does not fit in memory.
package imaging
