package imaging

import (
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ImageCache provides thread-safe caching of decoded car photos.
//
// The cache stores decoded image.Image values keyed by file path. The trainer
// reads every training image once per epoch and the MCP server crops several
// regions from the same photo, so repeated Load calls for a path are served
// from memory.
//
// ImageCache is safe for concurrent use by multiple goroutines.
//
// # Memory Management
//
// Cached images remain in memory until removed via Evict or Clear. Training
// sets that do not fit in memory should use a cache with a capacity limit
// (see NewBoundedImageCache).
//
// # Example Usage
//
//	cache := imaging.NewImageCache()
//	img, err := cache.Load("/data/cars/0001.jpg")
//	if err != nil {
//	    log.Fatal(err)
//	}
type ImageCache struct {
	mu       sync.RWMutex
	images   map[string]image.Image
	order    []string
	capacity int
}

// NewImageCache creates an unbounded image cache.
func NewImageCache() *ImageCache {
	return NewBoundedImageCache(0)
}

// NewBoundedImageCache creates a cache holding at most capacity images. When
// full, the oldest entry is evicted first. A capacity <= 0 means unbounded.
func NewBoundedImageCache(capacity int) *ImageCache {
	return &ImageCache{
		images:   make(map[string]image.Image),
		capacity: capacity,
	}
}

// Load retrieves an image from the cache or decodes it from disk.
//
// Parameters:
//   - path: File path to the image. Supported formats are PNG, JPEG and GIF.
//
// Returns:
//   - image.Image: The decoded image in its native color model.
//   - error: Non-nil if the file cannot be opened or decoded.
//
// Paths are used verbatim as keys; a relative and an absolute path to the
// same file are cached separately.
func (c *ImageCache) Load(path string) (image.Image, error) {
	c.mu.RLock()
	if img, ok := c.images[path]; ok {
		c.mu.RUnlock()
		return img, nil
	}
	c.mu.RUnlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}

	c.mu.Lock()
	if _, ok := c.images[path]; !ok {
		c.images[path] = img
		c.order = append(c.order, path)
		for c.capacity > 0 && len(c.order) > c.capacity {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.images, oldest)
		}
	}
	c.mu.Unlock()

	return img, nil
}

// Len returns the number of cached images.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// Clear removes all images from the cache.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]image.Image)
	c.order = nil
	c.mu.Unlock()
}

// Evict removes a specific image from the cache by its path and reports
// whether it was cached.
func (c *ImageCache) Evict(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.images[path]; !ok {
		return false
	}
	delete(c.images, path)
	for i, p := range c.order {
		if p == path {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

// ImageInfo contains metadata about a loaded photo.
type ImageInfo struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Format is "png", "jpeg", "gif" or "unknown", from the file extension.
	Format string `json:"format"`

	// HasAlpha indicates whether the decoded image carries an alpha channel.
	// Alpha is dropped when the image is converted for the regressor.
	HasAlpha bool `json:"has_alpha"`

	// FileSizeBytes is the size of the image file on disk in bytes.
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// LoadImageInfo loads an image through the cache and returns its metadata.
//
// Parameters:
//   - cache: The image cache to use for loading. Must not be nil.
//   - path: Path to the image file.
func LoadImageInfo(cache *ImageCache, path string) (*ImageInfo, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	format := "unknown"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		format = "png"
	case ".jpg", ".jpeg":
		format = "jpeg"
	case ".gif":
		format = "gif"
	}

	hasAlpha := false
	switch img.(type) {
	case *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64:
		hasAlpha = true
	}

	bounds := img.Bounds()
	return &ImageInfo{
		Width:         bounds.Dx(),
		Height:        bounds.Dy(),
		Format:        format,
		HasAlpha:      hasAlpha,
		FileSizeBytes: stat.Size(),
	}, nil
}

// DimensionsResult contains the width and height of an image.
type DimensionsResult struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// GetDimensions returns the pixel size of an image, loading it if needed.
func GetDimensions(cache *ImageCache, path string) (*DimensionsResult, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	return &DimensionsResult{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}
