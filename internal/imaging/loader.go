package imaging

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
)

// SupportedExtensions lists the file extensions offered by the file picker
// and accepted by the directory watcher.
var SupportedExtensions = []string{".png", ".jpg", ".jpeg", ".bmp", ".gif", ".tif", ".tiff"}

// IsSupported reports whether path has a supported image extension.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SupportedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ImageCache provides thread-safe caching of decoded images, so that
// re-opening the preview for the same file, or recognizing several regions of
// one image over MCP, does not decode it again.
//
// Images are keyed by the exact path string given to Load. ImageCache is safe
// for concurrent use by multiple goroutines.
//
// # Memory Management
//
// Cached images remain in memory until explicitly removed via Evict() or
// Clear(). Screenshots are never cached; they go straight to a temp file.
//
// # Example Usage
//
//	cache := imaging.NewImageCache()
//	img, err := cache.Load("/path/to/receipt.jpg")
//	if err != nil {
//	    return err
//	}
//	// Crop and recognize img...
//	cache.Evict("/path/to/receipt.jpg") // Optional: free memory
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]image.Image
}

// NewImageCache creates an empty cache, ready for concurrent use.
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]image.Image),
	}
}

// Load retrieves an image from the cache or decodes it from disk if not cached.
//
// Parameters:
//   - path: Absolute or relative file path to the image. Supported formats
//     are those in SupportedExtensions.
//
// Returns:
//   - image.Image: The decoded image, with EXIF orientation applied so that
//     phone photos preview upright.
//   - error: Non-nil if the file cannot be opened or decoded.
//
// Different paths to the same file (e.g., relative vs absolute) result in
// separate cache entries. Failed loads are not cached.
func (c *ImageCache) Load(path string) (image.Image, error) {
	c.mu.RLock()
	if img, ok := c.images[path]; ok {
		c.mu.RUnlock()
		return img, nil
	}
	c.mu.RUnlock()

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}

	c.mu.Lock()
	c.images[path] = img
	c.mu.Unlock()

	return img, nil
}

// Evict drops path from the cache. Unknown paths are ignored.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.images, path)
	c.mu.Unlock()
}

// Clear drops every cached image.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]image.Image)
	c.mu.Unlock()
}

// Len returns the number of cached images.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// ImageInfo describes a loaded image file. It is the result of the
// image_load MCP tool.
type ImageInfo struct {
	// Path is the path as given by the caller.
	Path string `json:"path"`

	// Width and Height are the pixel dimensions after EXIF orientation.
	Width  int `json:"width"`
	Height int `json:"height"`

	// Format is the lower-case format name derived from the extension
	// (e.g., "png", "jpeg"), or "unknown".
	Format string `json:"format"`

	// FileSizeBytes is the size of the file on disk.
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// LoadImageInfo loads an image through cache and reports its metadata.
//
// Parameters:
//   - cache: The cache to load through. The decoded image stays cached for
//     later crops of the same file.
//   - path: Path to the image file.
//
// Returns:
//   - *ImageInfo: Dimensions, format and file size.
//   - error: Non-nil if the image cannot be decoded or the file cannot be
//     stat'ed.
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
	if f, err := imaging.FormatFromFilename(path); err == nil {
		format = strings.ToLower(f.String())
	}

	bounds := img.Bounds()
	return &ImageInfo{
		Path:          path,
		Width:         bounds.Dx(),
		Height:        bounds.Dy(),
		Format:        format,
		FileSizeBytes: stat.Size(),
	}, nil
}
