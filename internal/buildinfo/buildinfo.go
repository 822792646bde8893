// Package buildinfo carries the version stamped at build time via
// -ldflags "-X .../internal/buildinfo.Version=v1.2.3".
package buildinfo

var Version = "dev"
