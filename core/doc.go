// Package core contains the canonical bridge domain contracts, entities, and
// orchestration logic: tenant installations, token lifecycle, webhook dedup,
// and the message relay. Adapters (clients, stores, webhook handlers) depend
// on this package; core must not depend on transport-specific adapters.
package core
