package config

import (
	"github.com/vango-dev/hashsync/internal/errors"
	"github.com/vango-dev/hashsync/pkg/format"
	"github.com/vango-dev/hashsync/pkg/hash"
	"github.com/vango-dev/hashsync/pkg/qs"
)

// BuildFormat returns the format described by the format section.
func (c *Config) BuildFormat() (format.Format, error) {
	var opts []format.Option
	if c.Format.Separator != "" {
		opts = append(opts, format.WithCodec(qs.Codec{Separator: c.Format.Separator}))
	}
	q, set, err := c.Format.Query.QueryMode()
	if err != nil {
		return nil, errors.New("H201").WithDetail(err.Error())
	}
	if set {
		opts = append(opts, format.WithQuery(q))
	}

	switch c.Format.Kind {
	case FormatPath, "":
		return format.NewPath(opts...), nil
	case FormatQuery:
		return format.NewQuery(opts...), nil
	case FormatTile:
		if p := c.Format.Precision; p != nil {
			opts = append(opts, format.WithPrecision(format.ConstantPrecision(*p)))
		}
		return format.NewTile(opts...), nil
	case FormatTemplate:
		t, err := format.New(c.Format.Template, opts...)
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, errors.New("H201").WithDetailf("unknown format kind %q", c.Format.Kind)
	}
}

// BuildDefault returns the controller's default policy. Without configured
// defaults an unparseable hash is ignored.
func (c *Config) BuildDefault() hash.Default {
	if c.Defaults == nil {
		return hash.DefaultIdentity
	}
	return hash.DefaultValue(c.Defaults.Clone())
}
