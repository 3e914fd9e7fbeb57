package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/tenantadmin/internal/admin/config"
	"github.com/dmitrijs2005/tenantadmin/internal/backup"
	"github.com/dmitrijs2005/tenantadmin/internal/flagx"
)

// commandFlags are the flags individual commands understand.
var commandFlags = flagx.Spec{
	Value: []string{"-file", "-collections", "-reason"},
	Bool:  []string{"-dry-run", "-skip-diff", "-allow-env-mismatch", "-allow-unlocked", "-allow-cross-tenant"},
}

var allFlags = config.GlobalFlags.Merge(commandFlags)

type options struct {
	file             string
	collections      []string
	reason           string
	dryRun           bool
	skipDiff         bool
	allowEnvMismatch bool
	allowUnlocked    bool
	allowCrossTenant bool
}

func parseOptions(args []string) (options, error) {
	var o options
	var colls string

	fs := flag.NewFlagSet("command", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&o.file, "file", "", "backup artifact to restore")
	fs.StringVar(&colls, "collections", "", "comma separated collection names")
	fs.StringVar(&o.reason, "reason", "", "maintenance reason")
	fs.BoolVar(&o.dryRun, "dry-run", false, "collect without writing")
	fs.BoolVar(&o.skipDiff, "skip-diff", false, "capture without diffing")
	fs.BoolVar(&o.allowEnvMismatch, "allow-env-mismatch", false, "restore across environments")
	fs.BoolVar(&o.allowUnlocked, "allow-unlocked", false, "diff without the maintenance lock")
	fs.BoolVar(&o.allowCrossTenant, "allow-cross-tenant", false, "restore another tenant's backup")

	if err := fs.Parse(flagx.FilterArgs(args, commandFlags)); err != nil {
		return options{}, err
	}
	for _, c := range strings.Split(colls, ",") {
		if c = strings.TrimSpace(c); c != "" {
			o.collections = append(o.collections, c)
		}
	}
	return o, nil
}

var (
	errCancelled = errors.New("cancelled by operator")
	errUsage     = errors.New("usage")
)

// preconditionError reports a gate that refused an operation.
type preconditionError struct {
	p backup.Precondition
}

func (e preconditionError) Error() string {
	return fmt.Sprintf("%s: %s", e.p, e.p.Message())
}

func failed(p backup.Precondition) error {
	if p == "" {
		return nil
	}
	return preconditionError{p: p}
}

type command func(ctx context.Context, args []string, o options) error

func (a *App) commands() map[string]command {
	return map[string]command{
		"backup":            a.backup,
		"list":              a.list,
		"restore-full":      a.restoreFull,
		"snapshot":          a.snapshot,
		"diff":              a.diff,
		"restore-selective": a.restoreSelective,
		"restore-diff":      a.restoreDiff,
		"tenant":            a.tenant,
		"maintenance":       a.maintenance,
		"claims":            a.claimsCmd,
		"users":             a.users,
	}
}

// Run executes the command in args and returns the process exit code. args
// is the whole command line after the program name; global flags are
// skipped here.
func (a *App) Run(ctx context.Context, args []string) int {
	pos := flagx.Positionals(args, allFlags)
	if len(pos) == 0 || pos[0] == "help" {
		fmt.Fprint(a.out, usage)
		return ExitOK
	}

	cmd, ok := a.commands()[pos[0]]
	if !ok {
		fmt.Fprintf(a.out, "unknown command %q\n\n%s", pos[0], usage)
		return ExitError
	}
	o, err := parseOptions(args)
	if err != nil {
		fmt.Fprintf(a.out, "%v\n", err)
		return ExitError
	}

	err = cmd(ctx, pos[1:], o)

	var pe preconditionError
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, errCancelled):
		fmt.Fprintln(a.out, "Cancelled. Nothing was changed.")
		return ExitOK
	case errors.As(err, &pe):
		fmt.Fprintf(a.out, "Refused (%s): %s\n", pe.p, pe.p.Message())
		return ExitPrecondition
	case errors.Is(err, errUsage):
		fmt.Fprintf(a.out, "%v\n\n%s", err, usage)
		return ExitError
	default:
		a.logger.Error(ctx, "command failed", "command", pos[0], "err", err)
		return ExitError
	}
}

// arg returns the i-th positional or a usage error naming it.
func arg(args []string, i int, name string) (string, error) {
	if i >= len(args) || args[i] == "" {
		return "", fmt.Errorf("%w: missing <%s>", errUsage, name)
	}
	return args[i], nil
}

const usage = `Usage: tenantadmin [global flags] <command> [command flags] [args]

Backup and restore:
  backup <tenant> [-dry-run]
  list [tenant]
  restore-full <tenant> [-file path] [-allow-env-mismatch] [-allow-cross-tenant]
  snapshot <tenant> [-skip-diff]
  diff <tenant> [-allow-unlocked]
  restore-selective <tenant> -collections a,b
  restore-diff <tenant> -collections a,b

Tenants:
  tenant info|users|delete <tenant>
  maintenance on|off|status <tenant> [-reason text]

Identity:
  claims set|remove <superuser|developer> <uid>
  users view <uid> | get-uid <email> | superusers

Global flags:
  -c, -config file   JSON or YAML config file
  -s local|s3        storage type
  -o dir             local backup directory
  -b, -g, -e         S3 bucket, region, endpoint
  -u, -p             S3 access key, secret key
  -driver, -d        directory database driver and DSN
  -emulator, -prod, -dev
                     target environment
  -y                 answer yes to every confirmation
  -v, -log-json      debug logging, JSON logs
`
