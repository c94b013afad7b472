package pathmap

import (
	"fmt"
	"regexp"
	"strings"
)

// Convention is the separator and root-anchor style of a filesystem namespace.
type Convention int

const (
	// Posix paths use '/' and are rooted at '/'.
	Posix Convention = iota
	// WindowsDrive paths use '\' and are rooted at a drive letter.
	WindowsDrive
)

func (c Convention) String() string {
	switch c {
	case Posix:
		return "posix"
	case WindowsDrive:
		return "windows"
	default:
		return fmt.Sprintf("Convention(%d)", int(c))
	}
}

// ParseConvention accepts "posix" or "windows" (case-insensitive).
func ParseConvention(s string) (Convention, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "posix", "unix", "linux":
		return Posix, nil
	case "windows", "win", "windowsdrive":
		return WindowsDrive, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownConvention, s)
	}
}

var (
	repeatedBackslash = regexp.MustCompile(`\\{2,}`)
	repeatedSlash     = regexp.MustCompile(`/{2,}`)
	bareDrive         = regexp.MustCompile(`^[A-Za-z]:$`)
	driveRoot         = regexp.MustCompile(`^[A-Za-z]:\\$`)
)

// normalize rewrites separators for the target convention and collapses
// duplicates. A leading UNC "\\" is preserved.
func normalize(path string, to Convention) string {
	switch to {
	case WindowsDrive:
		p := strings.ReplaceAll(path, "/", `\`)
		unc := strings.HasPrefix(p, `\\`)
		p = repeatedBackslash.ReplaceAllString(p, `\`)
		if unc {
			p = `\` + p
		}
		if bareDrive.MatchString(p) {
			return p + `\`
		}
		if len(p) > 1 && strings.HasSuffix(p, `\`) && !driveRoot.MatchString(p) && !(unc && len(p) == 2) {
			p = strings.TrimRight(p, `\`)
		}
		return p
	default:
		p := strings.ReplaceAll(path, `\`, "/")
		p = repeatedSlash.ReplaceAllString(p, "/")
		if len(p) > 1 {
			p = strings.TrimRight(p, "/")
		}
		return p
	}
}
