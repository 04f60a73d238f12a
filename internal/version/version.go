// ABOUTME: Version and product identification
// ABOUTME: Reported by --version and in the remote trigger logs
package version

const (
	// Version is the release version
	Version = "0.3.0"
	// Product is the product name
	Product = "sample-trig"
	// Manufacturer identifies the maintainer
	Manufacturer = "maxmbed"
)
