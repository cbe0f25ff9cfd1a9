package command

import (
	"io"

	"github.com/joeycumines/behavior-engine/internal/config"
	"github.com/joeycumines/behavior-engine/internal/logging"
)

// resolveLogOptions resolves logging options from flags and config
// defaults. Flag values take precedence; config values (env, then file,
// then schema default) are used when a flag is empty.
func resolveLogOptions(cfg *config.Config, flagLevel, flagFile string, stderr io.Writer) logging.Options {
	schema := config.DefaultSchema()
	opts := logging.Options{
		Level:     flagLevel,
		File:      flagFile,
		MaxSizeMB: schema.ResolveInt(cfg, "", "log.max-size-mb"),
		MaxFiles:  schema.ResolveInt(cfg, "", "log.max-files"),
		Stderr:    stderr,
	}
	if opts.Level == "" {
		opts.Level = schema.Resolve(cfg, "log.level")
	}
	if opts.File == "" {
		opts.File = schema.Resolve(cfg, "log.file")
	}
	return opts
}
