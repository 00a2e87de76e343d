//go:build !unix

package main

import "errors"

var errNotPrivileged = errors.New("raw ICMP sockets are only supported on unix systems")

func checkPrivilege() error {
	return errNotPrivileged
}
