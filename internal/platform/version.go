package platform

import (
	"context"
	"fmt"
	"regexp"

	"github.com/Masterminds/semver"
	"github.com/shirou/gopsutil/v3/host"
)

// Kernel release strings carry vendor suffixes (4.14.186+, 6.1.0-13-amd64)
// that are not valid semver, so only the numeric prefix is parsed.
var releasePrefix = regexp.MustCompile(`^\d+(\.\d+){0,2}`)

// KernelMajor returns the major version of the running kernel.
func KernelMajor(ctx context.Context) (int, error) {
	release, err := host.KernelVersionWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading kernel version: %w", err)
	}
	return parseMajor(release)
}

func parseMajor(release string) (int, error) {
	prefix := releasePrefix.FindString(release)
	if prefix == "" {
		return 0, fmt.Errorf("unrecognized kernel release %q", release)
	}
	v, err := semver.NewVersion(prefix)
	if err != nil {
		return 0, fmt.Errorf("parsing kernel release %q: %w", release, err)
	}
	return int(v.Major()), nil
}
