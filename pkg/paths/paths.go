// Package paths computes canonical storage locations for media and run
// artifacts. All functions are pure; directory creation and I/O belong to
// the storage collaborators.
//
// Media tree layout, rooted at the configured media root:
//
//	models/{MeshID}/{MeshID}_prev.png    preview shown in the viewer
//	models/{MeshID}/{MeshID}_thumb.png   thumbnail shown in listings
//	models/{MeshID}/images/              contributed images
//	{MeshID}/cache/{timestamp}__{RunID}  per-run reconstruction cache
package paths

import (
	"fmt"
	"path"
	"strings"
	"time"
)

const runTimestampLayout = "2006-01-02-15-04-05"

// MeshPreview returns the preview image path for a mesh.
func MeshPreview(meshID string) string {
	return path.Join("models", meshID, meshID+"_prev.png")
}

// MeshThumbnail returns the thumbnail image path for a mesh.
func MeshThumbnail(meshID string) string {
	return path.Join("models", meshID, meshID+"_thumb.png")
}

// MeshImageDir returns the directory receiving contributed images.
func MeshImageDir(meshID string) string {
	return path.Join("models", meshID, "images")
}

// ImageFile returns the storage path for a contributed image. The extension
// is the last dot-separated token of the original filename, lower-cased.
func ImageFile(meshID, imageID, originalName string) string {
	parts := strings.Split(originalName, ".")
	ext := strings.ToLower(parts[len(parts)-1])
	return path.Join(MeshImageDir(meshID), fmt.Sprintf("%s.%s", imageID, ext))
}

// RunCacheDir returns the cache directory for a reconstruction run. The
// run ID suffix keeps the name collision-free even when two runs on the
// same mesh start within the same second.
func RunCacheDir(meshID, runID string, startedAt time.Time) string {
	return path.Join(meshID, "cache",
		fmt.Sprintf("%s__%s", startedAt.UTC().Format(runTimestampLayout), runID))
}
