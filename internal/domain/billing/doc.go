// Package billing provides the domain model for tenant subscriptions and
// billing in a multi-tenant school-management SaaS.
//
// This package implements the subscription bounded context, which is
// responsible for:
//   - Maintaining the catalog of subscription plans (tiers ordered by
//     included-student threshold)
//   - Owning each tenant's subscription record and driving its state
//     transitions (renew, upgrade, downgrade, suspend, cancel)
//   - Recording immutable billing charges in an append-only ledger
//
// Key Aggregates:
//   - SubscriptionPlan: Global reference data describing one tier
//   - TenantSubscription: One per tenant, the subscription state machine
//   - BillingLedgerEntry: Immutable charge record with a unique invoice number
//
// Value Objects:
//   - PlanCatalog: Point-in-time ordered view over active plans
//   - BillingReason, SubscriptionStatus: Closed enumerations validated at
//     construction time
//
// The billing domain integrates with:
//   - Metering domain: Student counts drive tier changes and overage charges
//   - Admin application: Plans are created and edited by administrators,
//     never by the engine itself
package billing
