package tenantschema

import (
	"fmt"
	"sort"
	"testing"

	"github.com/davecgh/go-spew/spew"
	pg_query "github.com/lfittl/pg_query_go"
)

// TranslateTester runs the translator with translation map tm on each query that is a key in m.
// They are sorted first for a predictable test ordering.
// Each query is tested in a separate call to t.Run.
// The output of each translation is compared against the corresponding value in m.
// A mismatch produces a call to t.Error.
// Other errors produce calls to t.Fatal.
//
// Programs using this package can call it with their own queries
// to check that tenant sessions will see the table references they expect.
func TranslateTester(t *testing.T, tm SchemaTranslateMap, m map[string]string) {
	// Test the items of m in the same order every time.
	var sorted sort.StringSlice
	for q := range m {
		sorted = append(sorted, q)
	}
	sorted.Sort()

	for i, pre := range sorted {
		post := m[pre]
		t.Run(fmt.Sprintf("%03d", i+1), func(t *testing.T) {
			tree, err := pg_query.Parse(pre)
			if err != nil {
				t.Fatal(err)
			}
			got, err := translateTree(pre, tree, tm)
			if err != nil {
				t.Fatalf("translate error: %s\n%s", err, spew.Sdump(tree))
			}
			if got != post {
				t.Errorf("mismatch\ngot  %s\nwant %s\n%s", got, post, spew.Sdump(tree))
			}
		})
	}
}
