package sysfs

import (
	"io/fs"

	"codeberg.org/mutker/thermalctl/internal/errors"
)

const (
	ErrTimeout  = errors.ErrTimeout
	ErrRead     = errors.ErrorCode("sysfs_read_failed")
	ErrWrite    = errors.ErrorCode("sysfs_write_failed")
	ErrParse    = errors.ErrorCode("sysfs_parse_failed")
	ErrGlob     = errors.ErrorCode("sysfs_glob_failed")
	ErrNotFound = errors.ErrResourceNotFound
)

// IsPermission reports whether err was caused by missing privileges.
func IsPermission(err error) bool {
	return errors.Is(err, fs.ErrPermission)
}

// IsNotExist reports whether err was caused by a missing file.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// IsTimeout reports whether err came from an operation exceeding its deadline.
func IsTimeout(err error) bool {
	return errors.HasCode(err, ErrTimeout)
}
