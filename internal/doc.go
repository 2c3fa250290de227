// Package internal contains the implementation packages for the sitewright
// CLI.
//
// # Package Organization
//
//   - classify: maps a path to its file class by project directory prefix
//   - commands: the command set and the generator that turns requests and
//     file notifications into ordered command lists
//   - config: settings loaded with viper, resolved and validated
//   - dirconfig: per-directory extension mappings with inheritance
//   - errors: structured errors and collection
//   - files: pipeline files, loading, enumeration and ignore rules
//   - logging: the slog based logger and error counter
//   - metrics: the pipeline recorder (noop and Prometheus)
//   - models: model injectors (front matter, side-by-side, file name, named)
//   - output: the sandboxed website writer
//   - partials: the lazily loaded partial cache
//   - pipeline: the staged, concurrent view pipeline
//   - processors: markdown, template, layout and minify processors
//   - rebase: view and asset destinations and path-to-root rewriting
//   - server: static serving, live reload and the status page
//   - services: the host loop that dispatches commands
//   - sidebyside: data files stored next to their views
//   - validation: process allowlists and origin checks
//   - watcher: debounced filesystem notifications
//
// # Flow
//
// The command line or the watcher produces a request or a batch of
// notifications. The command generator turns it into commands, the host
// dispatches them one at a time, and view commands run through the
// pipeline: load, inject models, resolve configuration, process, rebase
// and write.
package internal
