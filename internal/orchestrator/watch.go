package orchestrator

import (
	"context"
	"errors"

	"docmigrate/internal/config"
	"docmigrate/internal/report"
	"docmigrate/internal/resolver"
	"docmigrate/internal/watcher"
)

// WatchRebuild runs the rebuild once, then again for every batch of output files
// that settles in the flat folder, until ctx ends. Each pass is an independent
// run with a fresh index, its own audit run and its own timestamped report.
// Configuration errors on the first pass are returned; a report that cannot be
// written, or any failure of a later pass, is logged and watching continues.
func (o *Orchestrator) WatchRebuild(ctx context.Context, cfg *config.Rebuild, settings *config.Watch) (*watcher.WatchSummary, error) {
	var timings config.Watch
	if settings != nil {
		timings = *settings
	}
	timings.ApplyDefaults()
	if err := o.checkValidation(config.ValidateWatch(&timings)); err != nil {
		return nil, err
	}

	pass := func(ctx context.Context) error {
		c := *cfg
		c.ReportPath = o.passReportPath(cfg.ReportPath)
		_, err := o.Rebuild(ctx, &c)
		return err
	}

	if err := pass(ctx); err != nil {
		var writeErr *report.WriteError
		if !errors.As(err, &writeErr) {
			return nil, err
		}
		o.logger.Error().Err(err).Msg("initial rebuild")
	}

	c := *cfg
	c.ApplyDefaults()
	ext := resolver.NewNaming(c.Suffix, c.OutputExt).Ext
	w := watcher.New(o.fs, watcher.FromSettings(&timings, []string{ext}),
		func(ctx context.Context, paths []string) error {
			o.logf("Detected %d new file(s) in %s", len(paths), c.FlatFolder)
			return pass(ctx)
		}, o.logger)
	if err := w.Start(ctx, []string{c.FlatFolder}); err != nil {
		return nil, err
	}
	o.logf("Watching %s for new output (Ctrl+C to stop)", c.FlatFolder)

	<-ctx.Done()
	return w.Stop(), nil
}
