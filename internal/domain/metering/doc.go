// Package metering provides the domain model for resource governance in a
// multi-tenant school-management SaaS: usage snapshots, per-tenant hard
// resource caps, and health monitoring state.
//
// Key Aggregates:
//   - TenantResourceLimit: Per-tenant hard caps plus cached usage fields
//     refreshed wholesale by the health monitor
//   - TenantHealth: Last-computed health indicators and a bounded,
//     operator-clearable alert list
//
// Value Objects:
//   - UsageSnapshot: Point-in-time consumption counters for one tenant
//   - ResourceKind, LimitDecision: Closed enumerations for cap checks
//
// Resource caps are independent of the billing tier: a tenant's plan decides
// what it pays, the caps decide what the platform will admit.
package metering
