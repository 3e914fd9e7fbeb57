package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/tenantadmin/internal/claims"
	"github.com/dmitrijs2005/tenantadmin/internal/common"
	"github.com/dmitrijs2005/tenantadmin/internal/confirm"
)

func (a *App) tenant(ctx context.Context, args []string, _ options) error {
	sub, err := arg(args, 0, "info|users|delete")
	if err != nil {
		return err
	}
	id, err := arg(args, 1, "tenant")
	if err != nil {
		return err
	}

	switch sub {
	case "info":
		info, err := a.tenants.Info(ctx, id)
		if err != nil {
			return err
		}
		a.printTenantInfo(info)
	case "users":
		members, err := a.tenants.ListUsers(ctx, id)
		if err != nil {
			return err
		}
		a.printMembers(members)
	case "delete":
		info, err := a.tenants.Info(ctx, id)
		if err != nil {
			return err
		}
		if !a.config.AssumeYes {
			questions := []string{fmt.Sprintf("Delete tenant %s (%s) with all of its users and data? This cannot be undone.", id, info.CompanyName)}
			if a.config.Environment() == common.EnvProd {
				questions = append(questions, "This is PRODUCTION. Delete anyway?")
			}
			ok, err := confirm.Ask(ctx, a.prompter, questions)
			if err != nil {
				return err
			}
			if !ok {
				return errCancelled
			}
		}
		res, err := a.tenants.Delete(ctx, id)
		if err != nil {
			return err
		}
		a.printDelete(res)
	default:
		return fmt.Errorf("%w: unknown tenant command %q", errUsage, sub)
	}
	return nil
}

func (a *App) maintenance(ctx context.Context, args []string, o options) error {
	sub, err := arg(args, 0, "on|off|status")
	if err != nil {
		return err
	}
	id, err := arg(args, 1, "tenant")
	if err != nil {
		return err
	}

	switch sub {
	case "on", "off":
		st, err := a.tenants.SetMaintenance(ctx, id, sub == "on", o.reason)
		if err != nil {
			return err
		}
		if !st.Changed {
			a.printf("Maintenance is already %s for %s.\n", sub, id)
		}
		a.printMaintenance(id, st)
	case "status":
		st, err := a.tenants.MaintenanceStatus(ctx, id)
		if err != nil {
			return err
		}
		a.printMaintenance(id, st)
	default:
		return fmt.Errorf("%w: unknown maintenance command %q", errUsage, sub)
	}
	return nil
}

func (a *App) claimsCmd(ctx context.Context, args []string, _ options) error {
	sub, err := arg(args, 0, "set|remove")
	if err != nil {
		return err
	}
	role, err := arg(args, 1, "superuser|developer")
	if err != nil {
		return err
	}
	uid, err := arg(args, 2, "uid")
	if err != nil {
		return err
	}
	claim, err := claims.Parse(role)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	switch sub {
	case "set":
		u, err := a.claims.SetClaim(ctx, uid, claim)
		if err != nil {
			return err
		}
		a.printf("Claim %s set for %s.\n", claim, uid)
		a.printUser(u)
	case "remove":
		u, err := a.claims.RemoveClaim(ctx, uid, claim)
		if err != nil {
			return err
		}
		a.printf("Claim %s removed from %s.\n", claim, uid)
		a.printUser(u)
	default:
		return fmt.Errorf("%w: unknown claims command %q", errUsage, sub)
	}
	a.printf("The change applies from the user's next sign-in.\n")
	return nil
}

func (a *App) users(ctx context.Context, args []string, _ options) error {
	sub, err := arg(args, 0, "view|get-uid|superusers")
	if err != nil {
		return err
	}

	switch sub {
	case "view":
		uid, err := arg(args, 1, "uid")
		if err != nil {
			return err
		}
		u, err := a.claims.View(ctx, uid)
		if err != nil {
			return err
		}
		a.printUser(u)
	case "get-uid":
		email, err := arg(args, 1, "email")
		if err != nil {
			return err
		}
		uid, err := a.claims.UIDByEmail(ctx, email)
		if err != nil {
			return err
		}
		a.printf("%s\n", uid)
	case "superusers":
		us, err := a.claims.ListSuperUsers(ctx)
		if err != nil {
			return err
		}
		a.printSuperUsers(us)
	default:
		return fmt.Errorf("%w: unknown users command %q", errUsage, sub)
	}
	return nil
}
