package catalog

import (
	"fmt"
	"path"
	"strings"
)

// Category selects which logical catalog an entry belongs to.
type Category string

const (
	CategoryArchive          Category = "archive"
	CategoryModelSource      Category = "model_source"
	CategoryTextureContainer Category = "texture_container"
	CategoryVideo            Category = "video"
	CategoryAudio            Category = "audio"
	CategoryMusic            Category = "music"
	CategoryScript           Category = "script"
	CategoryBinary           Category = "binary"
	CategoryText             Category = "text"
	CategoryExtractedImage   Category = "extracted_image"
	CategoryUnknown          Category = "unknown"
)

var allCategories = []Category{
	CategoryArchive,
	CategoryModelSource,
	CategoryTextureContainer,
	CategoryVideo,
	CategoryAudio,
	CategoryMusic,
	CategoryScript,
	CategoryBinary,
	CategoryText,
	CategoryExtractedImage,
	CategoryUnknown,
}

// Coarse reporting tags. They are independent of the storing category: a
// texture container and an extracted image both report as "textures".
const (
	TagArchives = "archives"
	TagModels   = "models"
	TagTextures = "textures"
	TagVideo    = "video"
	TagAudio    = "audio"
	TagMusic    = "music"
	TagScripts  = "scripts"
	TagBinary   = "binary"
	TagText     = "text"
	TagUnknown  = "unknown"
)

var defaultTags = map[Category]string{
	CategoryArchive:          TagArchives,
	CategoryModelSource:      TagModels,
	CategoryTextureContainer: TagTextures,
	CategoryVideo:            TagVideo,
	CategoryAudio:            TagAudio,
	CategoryMusic:            TagMusic,
	CategoryScript:           TagScripts,
	CategoryBinary:           TagBinary,
	CategoryText:             TagText,
	CategoryExtractedImage:   TagTextures,
	CategoryUnknown:          TagUnknown,
}

var extensionCategories = map[string]Category{
	".str":          CategoryArchive,
	".preinstanced": CategoryModelSource,
	".txd":          CategoryTextureContainer,
	".vp6":          CategoryVideo,
	".ogv":          CategoryVideo,
	".snu":          CategoryAudio,
	".wav":          CategoryAudio,
	".mus":          CategoryMusic,
	".lua":          CategoryScript,
	".bin":          CategoryBinary,
	".txt":          CategoryText,
	".dds":          CategoryExtractedImage,
	".png":          CategoryExtractedImage,
	".tga":          CategoryExtractedImage,
	".gif":          CategoryExtractedImage,
	".bmp":          CategoryExtractedImage,
	".jpg":          CategoryExtractedImage,
	".jpeg":         CategoryExtractedImage,
	".tif":          CategoryExtractedImage,
	".tiff":         CategoryExtractedImage,
	".webp":         CategoryExtractedImage,
}

// Categories returns every category in a stable order.
func Categories() []Category {
	out := make([]Category, len(allCategories))
	copy(out, allCategories)
	return out
}

// ParseCategory accepts the stored form plus the hyphenated spelling.
func ParseCategory(value string) (Category, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), "-", "_")
	for _, c := range allCategories {
		if string(c) == normalized {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", value)
}

// Valid reports whether c is one of the defined categories.
func (c Category) Valid() bool {
	_, ok := defaultTags[c]
	return ok
}

// DefaultTag returns the reporting tag used when a collaborator supplies none.
func (c Category) DefaultTag() string {
	if tag, ok := defaultTags[c]; ok {
		return tag
	}
	return TagUnknown
}

// HoldsImages reports whether entries of this category carry perceptual
// fingerprints.
func (c Category) HoldsImages() bool {
	return c == CategoryExtractedImage
}

// IsContainer reports whether entries of this category may own children in
// the relationship graph.
func (c Category) IsContainer() bool {
	return c == CategoryArchive || c == CategoryTextureContainer
}

// Rank orders categories so containers are committed before the files they
// yield: archives, then ordinary content (texture containers included), then
// extracted images.
func (c Category) Rank() int {
	switch c {
	case CategoryArchive:
		return 0
	case CategoryExtractedImage:
		return 2
	default:
		return 1
	}
}

// ForPath infers a category from the extension of a logical path.
func ForPath(logicalPath string) Category {
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(logicalPath, "\\", "/")))
	if ext == "" {
		return CategoryUnknown
	}
	if c, ok := extensionCategories[ext]; ok {
		return c
	}
	return CategoryUnknown
}

// NormalizeTag lowercases a collaborator-supplied tag, falling back to the
// category default when empty.
func NormalizeTag(tag string, c Category) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return c.DefaultTag()
	}
	return tag
}
