package runner

import (
	"context"
	"regexp"

	"github.com/ctomkow/gluetube/internal/store"
)

// variablePattern matches ${KEY}-style placeholders in pipeline source.
// KEY may contain letters, digits and underscores; a Store key with any
// other character cannot be referenced from a placeholder.
var variablePattern = regexp.MustCompile(`\$\{([A-Za-z0-9_]+)\}`)

// renderPipeline substitutes every ${KEY} placeholder in src against the
// store's common table. Keys absent from the store are left unsubstituted
// rather than erroring — per spec.md §4.6 step 2 and §9, a pipeline that
// requires a key must fail loudly itself. The rendered text is only ever
// held in memory and fed to the interpreter over stdin; it is never
// written to disk.
func renderPipeline(ctx context.Context, s *store.Store, src string) (string, error) {
	var firstErr error
	out := variablePattern.ReplaceAllStringFunc(src, func(match string) string {
		if firstErr != nil {
			return match
		}
		key := variablePattern.FindStringSubmatch(match)[1]
		value, ok, err := s.Value(ctx, store.DefaultTable, key)
		if err != nil {
			firstErr = err
			return match
		}
		if !ok {
			return match
		}
		return value
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}
