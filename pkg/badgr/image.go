package badgr

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var imageMediaTypes = map[string]string{
	".svg": "image/svg+xml",
	".png": "image/png",
}

// EncodeImage reads a png or svg file and returns it as a base64 data URI,
// the format accepted by the image fields of issuers and badge classes.
func EncodeImage(path string) (string, error) {
	mediaType, ok := imageMediaTypes[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return "", invalid("image", "only svg and png images are supported")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}

	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
