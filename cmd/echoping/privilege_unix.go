//go:build unix

package main

import (
	"errors"

	"golang.org/x/sys/unix"
)

var errNotPrivileged = errors.New("root privilege required")

// checkPrivilege reports whether the process runs with an effective UID of 0.
func checkPrivilege() error {
	if unix.Geteuid() != 0 {
		return errNotPrivileged
	}
	return nil
}
