package export

import (
	"fmt"

	"github.com/user/expdata"
	"github.com/user/expdata/internal/config"
	"github.com/user/expdata/pkg/compression"
	"github.com/user/expdata/pkg/filestorage"
	"github.com/user/expdata/pkg/flatten"
	"github.com/user/expdata/pkg/hierarchy"
	"github.com/user/expdata/pkg/schema"
	"github.com/user/expdata/pkg/tabular"
)

// FromConfig creates a Service with the export settings of cfg.
func FromConfig(cfg *config.Config, src expdata.DataSource, apps []*schema.App, storage filestorage.Storage, logger expdata.Logger) (*Service, error) {
	mode, err := flatten.ParseSiblingMode(cfg.Export.SiblingMode)
	if err != nil {
		return nil, err
	}
	order, err := tabular.ParseColumnOrder(cfg.Export.ColumnOrder)
	if err != nil {
		return nil, err
	}
	algo, err := compression.ParseAlgorithm(cfg.Export.Compression)
	if err != nil {
		return nil, err
	}

	vars := make([]hierarchy.VarsColumn, 0, len(cfg.Export.VarsColumns))
	for _, vc := range cfg.Export.VarsColumns {
		c, err := hierarchy.ParseVarsColumn(vc.Name, vc.Path)
		if err != nil {
			return nil, fmt.Errorf("vars column %s: %w", vc.Name, err)
		}
		vars = append(vars, c)
	}

	return NewService(src, apps,
		WithStorage(storage),
		WithLogger(logger),
		WithFlattenOptions(flatten.WithGlue(cfg.Export.Glue), flatten.WithSiblingMode(mode)),
		WithBuilderOptions(
			hierarchy.WithVarsColumns(vars...),
			hierarchy.WithSessionParticipants(cfg.Export.SessionParticipants),
		),
		WithTabularOptions(tabular.WithColumnOrder(order), tabular.WithLogger(logger)),
		WithCompression(algo),
		WithTimeout(cfg.Export.Timeout),
	), nil
}
