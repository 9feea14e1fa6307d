package format

import "io/fs"

// File permission constants used throughout the application.
const (
	// DirUserGroupRead is for directories that should be readable by owner and group (rwxr-x---)
	DirUserGroupRead fs.FileMode = 0750

	// FileUserReadWrite is for files that should only be readable by owner (rw-------)
	FileUserReadWrite fs.FileMode = 0600
)
