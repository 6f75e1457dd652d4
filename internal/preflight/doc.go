// Package preflight provides readiness checks for the filesystem paths and
// external binaries a conversion run depends on.
//
// The convert command calls RunAll before touching the queue; `aacnorm check`
// renders the same results alongside the dependency report from
// CheckSystemDeps.
package preflight
