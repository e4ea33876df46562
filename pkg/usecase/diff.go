package usecase

import (
	"context"
	"reflect"
	"strings"

	"github.com/m-mizutani/vault-sync/pkg/domain/interfaces"
	"github.com/m-mizutani/vault-sync/pkg/domain/model"
)

// Differ compares the source and destination without changing either
type Differ struct {
	src       interfaces.SecretStore
	dst       interfaces.SecretStore
	srcPrefix string
	dstPrefix string
	filter    *model.PathFilter
}

// NewDiffer creates a Differ. Prefixes must be normalized.
func NewDiffer(src, dst interfaces.SecretStore, srcPrefix, dstPrefix string, filter *model.PathFilter) *Differ {
	return &Differ{
		src:       src,
		dst:       dst,
		srcPrefix: srcPrefix,
		dstPrefix: dstPrefix,
		filter:    filter,
	}
}

// Diff walks the source and returns one entry per non-excluded secret, in walk order
func (d *Differ) Diff(ctx context.Context) ([]*model.SecretDiff, error) {
	var diffs []*model.SecretDiff

	err := walkSecrets(ctx, d.src, d.srcPrefix, func(path string) error {
		if d.filter.Excluded(strings.TrimPrefix(path, d.srcPrefix)) {
			return nil
		}

		srcData, err := d.src.ReadSecret(ctx, path)
		if err != nil {
			return err
		}
		if srcData == nil {
			return nil
		}

		dstPath, _ := model.MapPath(d.srcPrefix, d.dstPrefix, path)
		dstData, err := d.dst.ReadSecret(ctx, dstPath)
		if err != nil {
			return err
		}

		diff := &model.SecretDiff{SrcPath: path, DstPath: dstPath}
		switch {
		case dstData == nil:
			diff.Kind = model.DiffMissing
		case reflect.DeepEqual(srcData, dstData):
			diff.Kind = model.DiffSame
		default:
			diff.Kind = model.DiffChanged
		}
		diffs = append(diffs, diff)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return diffs, nil
}
