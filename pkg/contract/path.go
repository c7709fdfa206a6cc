package contract

import (
	"path"
	"strings"
)

// NormalizeFileID turns a platform path into a stable FileID:
// forward slashes, cleaned segments, relative/absolute kept as given.
func NormalizeFileID(p string) FileID {
	return FileID(path.Clean(strings.ReplaceAll(p, "\\", "/")))
}
