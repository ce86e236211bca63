package tracker

import (
	"slices"

	"github.com/gogpu/hydra/sdfpath"
)

func sortPaths(ids []sdfpath.Path) {
	slices.SortFunc(ids, sdfpath.Compare)
}
