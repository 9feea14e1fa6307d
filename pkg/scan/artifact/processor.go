// Package artifact walks build output on disk and hands every text artifact to a checker.
package artifact

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/CompassSecurity/codechecker/pkg/checker/types"
	"github.com/CompassSecurity/codechecker/pkg/format"
	"github.com/CompassSecurity/codechecker/pkg/logging"
	"github.com/h2non/filetype"
	"github.com/rs/zerolog/log"
	"github.com/wandb/parallel"
	"golift.io/xtractr"
)

// ArchiveSeparator joins an archive name and the name of an entry inside it.
const ArchiveSeparator = "!/"

// Scanner receives artifacts. *gate.Plugin implements it.
type Scanner interface {
	ScanArtifact(ctx context.Context, artifact types.Artifact)
}

type ProcessOptions struct {
	MaxGoRoutines   int
	MaxArtifactSize int64
	IncludeBinary   bool
	ExtractArchives bool
}

type FileProcessingResult struct {
	FileName   string
	FileType   string
	Source     logging.ArtifactSource
	IsArchive  bool
	Scanned    bool
	SkipReason string
	Error      error
}

type ProcessingResult struct {
	Files []FileProcessingResult
}

// Scanned counts the artifacts that were handed to the scanner.
func (r *ProcessingResult) Scanned() int {
	count := 0
	for _, file := range r.Files {
		if file.Scanned {
			count++
		}
	}
	return count
}

// Errors returns every error that occurred while reading artifacts.
func (r *ProcessingResult) Errors() []error {
	errs := []error{}
	for _, file := range r.Files {
		if file.Error != nil {
			errs = append(errs, file.Error)
		}
	}
	return errs
}

// ProcessPaths scans files, directories and archives. Artifacts are named by their path
// relative to the directory given, archive entries by archive name, ArchiveSeparator and
// entry path. Unreadable artifacts are recorded in the result and do not stop the walk.
func ProcessPaths(ctx context.Context, scanner Scanner, paths []string, opts ProcessOptions) (*ProcessingResult, error) {
	group := parallel.Collect[[]FileProcessingResult](parallel.Limited(ctx, max(opts.MaxGoRoutines, 1)))

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			group.Wait()
			return nil, fmt.Errorf("failed reading %s: %w", root, err)
		}

		if !info.IsDir() {
			name := filepath.ToSlash(filepath.Clean(root))
			group.Go(func(ctx context.Context) ([]FileProcessingResult, error) {
				return processFile(ctx, scanner, root, name, opts), nil
			})
			continue
		}

		err = walkFiles(root, func(file string, name string) {
			group.Go(func(ctx context.Context) ([]FileProcessingResult, error) {
				return processFile(ctx, scanner, file, name, opts), nil
			})
		})
		if err != nil {
			group.Wait()
			return nil, fmt.Errorf("failed walking %s: %w", root, err)
		}
	}

	results, err := group.Wait()
	if err != nil {
		return nil, err
	}

	result := &ProcessingResult{}
	for _, files := range results {
		result.Files = append(result.Files, files...)
	}
	return result, nil
}

func walkFiles(root string, fn func(file string, name string)) error {
	return filepath.WalkDir(root, func(file string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, file)
		if err != nil {
			return err
		}
		fn(file, filepath.ToSlash(rel))
		return nil
	})
}

func processFile(ctx context.Context, scanner Scanner, file string, name string, opts ProcessOptions) []FileProcessingResult {
	result := FileProcessingResult{FileName: name, Source: logging.ArtifactSourceFile}

	info, err := os.Stat(file)
	if err != nil {
		result.Error = err
		return []FileProcessingResult{result}
	}
	if info.Size() > opts.MaxArtifactSize {
		log.Warn().Str("artifact", name).Str("size", format.HumanSize(info.Size())).Msg("Skipped large artifact")
		result.SkipReason = "size"
		return []FileProcessingResult{result}
	}

	// #nosec G304 - Paths come from walking the build output given on the command line
	content, err := os.ReadFile(file)
	if err != nil {
		log.Error().Err(err).Str("artifact", name).Msg("Unable to read artifact")
		result.Error = err
		return []FileProcessingResult{result}
	}

	mimeType, isArchive, isUnknown := DetermineFileType(content)
	result.FileType = mimeType
	result.IsArchive = isArchive

	if isArchive && opts.ExtractArchives {
		kind, _ := filetype.Match(content)
		if kind.Extension == "zip" {
			return append([]FileProcessingResult{result}, processZip(ctx, scanner, content, name, opts)...)
		}
		return append([]FileProcessingResult{result}, processArchiveFile(ctx, scanner, file, name, opts)...)
	}

	return []FileProcessingResult{scanContent(ctx, scanner, result, content, isUnknown, opts)}
}

func scanContent(ctx context.Context, scanner Scanner, result FileProcessingResult, content []byte, isUnknown bool, opts ProcessOptions) FileProcessingResult {
	if !isUnknown && !opts.IncludeBinary {
		log.Trace().Str("artifact", result.FileName).Str("type", result.FileType).Msg("Skipped binary artifact")
		result.SkipReason = "binary"
		return result
	}

	scanner.ScanArtifact(ctx, types.Artifact{Name: result.FileName, Content: format.DecodeText(content)})
	result.Scanned = true
	return result
}

func processZip(ctx context.Context, scanner Scanner, zipBytes []byte, archiveName string, opts ProcessOptions) []FileProcessingResult {
	size, err := format.ZipUncompressedSize(zipBytes)
	if err != nil {
		return []FileProcessingResult{{FileName: archiveName, Source: logging.ArtifactSourceArchive, Error: err}}
	}
	if size > uint64(opts.MaxArtifactSize) {
		log.Warn().Str("archive", archiveName).Str("size", format.HumanSize(int64(size))).Msg("Skipped archive, uncompressed size too large")
		return []FileProcessingResult{{FileName: archiveName, Source: logging.ArtifactSourceArchive, SkipReason: "size"}}
	}

	zipListing, err := zip.NewReader(bytes.NewReader(zipBytes), int64(len(zipBytes)))
	if err != nil {
		return []FileProcessingResult{{FileName: archiveName, Source: logging.ArtifactSourceArchive, Error: err}}
	}

	results := []FileProcessingResult{}
	for _, file := range zipListing.File {
		if file.FileInfo().IsDir() {
			continue
		}

		result := FileProcessingResult{FileName: archiveName + ArchiveSeparator + file.Name, Source: logging.ArtifactSourceArchive}
		content, err := ExtractZipFile(file)
		if err != nil {
			log.Error().Err(err).Str("artifact", result.FileName).Msg("Unable to read archive entry")
			result.Error = err
			results = append(results, result)
			continue
		}

		mimeType, isArchive, isUnknown := DetermineFileType(content)
		result.FileType = mimeType
		result.IsArchive = isArchive
		if isArchive {
			log.Debug().Str("artifact", result.FileName).Msg("Skipped nested archive")
			result.SkipReason = "nested archive"
			results = append(results, result)
			continue
		}

		results = append(results, scanContent(ctx, scanner, result, content, isUnknown, opts))
	}
	return results
}

func processArchiveFile(ctx context.Context, scanner Scanner, file string, archiveName string, opts ProcessOptions) []FileProcessingResult {
	outputDir, err := os.MkdirTemp("", "codechecker-")
	if err != nil {
		return []FileProcessingResult{{FileName: archiveName, Source: logging.ArtifactSourceArchive, Error: err}}
	}
	defer func() { _ = os.RemoveAll(outputDir) }()

	size, files, _, err := xtractr.ExtractFile(&xtractr.XFile{
		FilePath:  file,
		OutputDir: outputDir,
		FileMode:  format.FileUserReadWrite,
		DirMode:   format.DirUserGroupRead,
	})
	if err != nil {
		log.Error().Err(err).Str("archive", archiveName).Msg("Unable to extract archive")
		return []FileProcessingResult{{FileName: archiveName, Source: logging.ArtifactSourceArchive, Error: err}}
	}
	log.Debug().Str("archive", archiveName).Int("files", len(files)).Str("size", format.HumanSize(size)).Msg("Extracted archive")

	results := []FileProcessingResult{}
	err = walkFiles(outputDir, func(extracted string, name string) {
		entryName := archiveName + ArchiveSeparator + strings.TrimPrefix(name, "./")
		for _, result := range processFile(ctx, scanner, extracted, entryName, ProcessOptions{
			MaxArtifactSize: opts.MaxArtifactSize,
			IncludeBinary:   opts.IncludeBinary,
		}) {
			result.Source = logging.ArtifactSourceArchive
			results = append(results, result)
		}
	})
	if err != nil {
		results = append(results, FileProcessingResult{FileName: archiveName, Source: logging.ArtifactSourceArchive, Error: err})
	}
	return results
}

// ExtractZipFile reads one zip entry into memory.
func ExtractZipFile(zf *zip.File) ([]byte, error) {
	f, err := zf.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}

// DetermineFileType classifies content by its magic bytes. Text has no magic and is unknown.
func DetermineFileType(content []byte) (mimeType string, isArchive bool, isUnknown bool) {
	kind, _ := filetype.Match(content)
	return kind.MIME.Value, filetype.IsArchive(content), kind == filetype.Unknown
}
