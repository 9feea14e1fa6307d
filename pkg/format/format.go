package format

import (
	"archive/zip"
	"bytes"

	gounits "github.com/docker/go-units"
)

// ZipUncompressedSize returns the aggregated uncompressed size of files inside a zip archive.
func ZipUncompressedSize(data []byte) (uint64, error) {
	zipListing, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, err
	}

	totalSize := uint64(0)
	for _, file := range zipListing.File {
		totalSize += file.UncompressedSize64
	}
	return totalSize, nil
}

// HumanSize renders a byte count like "12.3kB" for log output.
func HumanSize(size int64) string {
	return gounits.HumanSize(float64(size))
}
