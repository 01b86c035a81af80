package xzip

import "github.com/nguyengg/xzip/xzerr"

// InvalidArchive reports a structural violation of the ZIP format.
type InvalidArchive = xzerr.InvalidArchive

// UnsupportedArchive reports a well-formed archive using a feature this module doesn't handle.
type UnsupportedArchive = xzerr.UnsupportedArchive

// InvalidPassword is returned when a supplied password fails validation.
type InvalidPassword = xzerr.InvalidPassword

// FileNotFound is returned by lookups that miss.
type FileNotFound = xzerr.FileNotFound
