// Package microservice provides the tenant-isolation and document-lifecycle
// layer that sits between authenticated request handlers and a backing
// document store.
//
// Session resolution:
//   - IdentityResolver validates an opaque session credential against an
//     external authentication collaborator (the central site) and produces a
//     SessionContext binding the caller to a user and a tenant. The resolved
//     session travels in the request's context.Context; nothing is cached or
//     shared across requests.
//
// Tenant scoping:
//   - TenantDB is the data-access facade. Every List carries an implicit
//     tenant constraint the caller cannot remove, every Get verifies tenant
//     ownership, and every Insert pins the document's tenant to the active
//     session regardless of caller-supplied values. Operations without a
//     resolved session fail before any store interaction.
//
// Lifecycle hooks:
//   - Hooks is a process-wide registry populated during startup and frozen
//     before traffic is served. Dispatch runs wildcard callbacks strictly
//     before doctype-specific callbacks, in registration order, halting on
//     the first failure. Controllers expose the same lifecycle points as
//     optional interfaces and are bridged into the registry by
//     RegisterControllers.
//
// Errors:
//   - Failures carry go-errors categories and are normalized into a uniform
//     response envelope by ErrorMapper: not-found 404, cross-tenant 403,
//     validation 400, authentication 401, anything unrecognized 500.
package microservice
