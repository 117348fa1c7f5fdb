// Package version provides dotted-version comparison and next-version suggestion.
package version

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Custom error types for better error handling and comparison
var (
	ErrNoVersionsProvided = errors.New("no versions provided")
)

// strictPattern is the only version shape accepted for sorting and suggestion.
// Compare itself tolerates anything dot-separated; callers filter with IsStrict
// before relying on ordering.
var strictPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// ErrVersionParseFailed represents a version parsing error
type ErrVersionParseFailed struct {
	Version string
	Cause   error
}

func (e ErrVersionParseFailed) Error() string {
	return fmt.Sprintf("failed to parse version %s: %v", e.Version, e.Cause)
}

func (e ErrVersionParseFailed) Unwrap() error {
	return e.Cause
}

func (e ErrVersionParseFailed) Is(target error) bool {
	var parseErr ErrVersionParseFailed
	return errors.As(target, &parseErr)
}

// Compare compares two dotted numeric version strings.
// Each string is split on "." and every segment parsed as a non-negative
// integer; missing trailing segments count as 0, so "1.2" == "1.2.0".
// Non-numeric segments coerce to 0; Compare does not validate. Callers that
// need strict ordering filter with IsStrict first.
// Returns a negative value if a < b, 0 if equal, positive if a > b.
func Compare(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		var av, bv int
		if i < len(as) {
			av, _ = strconv.Atoi(as[i])
		}
		if i < len(bs) {
			bv, _ = strconv.Atoi(bs[i])
		}
		if av != bv {
			return av - bv
		}
	}
	return 0
}

// IsStrict reports whether v matches the strict major.minor.patch shape.
func IsStrict(v string) bool {
	return strictPattern.MatchString(v)
}

// FilterStrict returns the subset of versions matching the strict shape,
// preserving input order.
func FilterStrict(versions []string) []string {
	out := make([]string, 0, len(versions))
	for _, v := range versions {
		if IsStrict(v) {
			out = append(out, v)
		}
	}
	return out
}

// SortDescending sorts versions newest first using Compare. The sort is
// stable so equal versions keep their input order.
func SortDescending(versions []string) {
	sort.SliceStable(versions, func(i, j int) bool {
		return Compare(versions[i], versions[j]) > 0
	})
}

// Latest returns the highest strict-shaped version from the list, or false
// if none qualifies.
func Latest(versions []string) (string, bool) {
	strict := FilterStrict(versions)
	if len(strict) == 0 {
		return "", false
	}
	latest := strict[0]
	for _, v := range strict[1:] {
		if Compare(v, latest) > 0 {
			latest = v
		}
	}
	return latest, true
}

// NextPatch returns v with its patch component incremented by one.
// v must be a strict major.minor.patch version.
func NextPatch(v string) (string, error) {
	sv, err := semver.StrictNewVersion(v)
	if err != nil {
		return "", ErrVersionParseFailed{Version: v, Cause: err}
	}
	next := sv.IncPatch()
	return next.String(), nil
}

// SuggestNext returns the next patch release after the highest strict version
// in the list. Returns ErrNoVersionsProvided when no version qualifies.
func SuggestNext(versions []string) (string, error) {
	latest, ok := Latest(versions)
	if !ok {
		return "", ErrNoVersionsProvided
	}
	return NextPatch(latest)
}
