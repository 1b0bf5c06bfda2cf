package migrate

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

type targetKind int

const (
	toHead targetKind = iota
	toBase
	toVersion
	relative
)

// target is a parsed revision string.
type target struct {
	kind    targetKind
	version int64 // for toVersion
	steps   int   // for relative; negative means down
}

// parseRevision understands "head", "base",
// relative steps like "+2" and "-1",
// and plain version numbers.
func parseRevision(rev string) (target, error) {
	switch rev {
	case "", "head", "heads":
		return target{kind: toHead}, nil
	case "base":
		return target{kind: toBase}, nil
	}
	if strings.HasPrefix(rev, "+") || strings.HasPrefix(rev, "-") {
		n, err := strconv.Atoi(rev)
		if err != nil || n == 0 {
			return target{}, errors.Wrap(ErrUnknownRevision, rev)
		}
		return target{kind: relative, steps: n}, nil
	}
	v, err := strconv.ParseInt(rev, 10, 64)
	if err != nil || v < 0 {
		return target{}, errors.Wrap(ErrUnknownRevision, rev)
	}
	return target{kind: toVersion, version: v}, nil
}
