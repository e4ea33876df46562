package cli

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/vault-sync/pkg/domain/model"
)

func TestPrintDiff(t *testing.T) {
	color.NoColor = true

	diffs := []*model.SecretDiff{
		{Kind: model.DiffMissing, SrcPath: "a", DstPath: "m/a"},
		{Kind: model.DiffChanged, SrcPath: "b", DstPath: "m/b"},
		{Kind: model.DiffSame, SrcPath: "c", DstPath: "m/c"},
	}

	t.Run("hides secrets in sync by default", func(t *testing.T) {
		var buf bytes.Buffer
		n := printDiff(&buf, diffs, false)

		gt.V(t, n).Equal(2)
		out := buf.String()
		gt.S(t, out).Contains("+ a -> m/a")
		gt.S(t, out).Contains("~ b -> m/b")
		gt.S(t, out).NotContains("= c")
		gt.S(t, out).Contains("2 of 3 secrets differ")
	})

	t.Run("prints everything with all", func(t *testing.T) {
		var buf bytes.Buffer
		printDiff(&buf, diffs, true)
		gt.S(t, buf.String()).Contains("= c -> m/c")
	})

	t.Run("empty diff", func(t *testing.T) {
		var buf bytes.Buffer
		gt.V(t, printDiff(&buf, nil, false)).Equal(0)
		gt.S(t, buf.String()).Contains("0 of 0 secrets differ")
	})
}
