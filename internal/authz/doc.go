// Package authz implements the role model of the audit workflow and the
// single-principal authorization model.
//
// Core concepts:
//
//   - Principal: A single authorization identity per request ({UserID, Role}).
//     Set via WithPrincipal or NewUserContext, read via GetPrincipal or RequirePrincipal.
//
//   - Role predicates: pure functions (IsCFO, IsCFOOrCXOTeam, CanAuthorObservations, ...)
//     used for branching, and Assert* variants returning a Forbidden error for early rejection.
//     CFO short-circuits every ownership and lock check; ADMIN is the same role under its legacy name.
//
//   - Lock bypass: Controlled audit-lock bypass via RunWithLockBypass (closure, preferred)
//     or WithLockBypass (explicit context). All bypass operations are audited.
//
// Usage rules:
//
//  1. Never read roles from anywhere but the principal in the context.
//  2. Prefer RunWithLockBypass closures to limit scope.
//  3. When using WithLockBypass, assign to bypassCtx, never ctx.
//  4. All bypass reasons must be stable strings for audit aggregation.
package authz
