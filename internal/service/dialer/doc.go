// Package dialer implements the campaign dialer tick.
//
// Each tick walks a bounded batch of tickable campaigns and, per campaign,
// computes the remaining daily quota, selects eligible leads, places calls
// through the voice provider and records every dispatched attempt. Campaigns
// and leads are processed sequentially; one tick never dials the same lead
// twice and a failed dial never consumes an attempt.
//
// The package depends on repository interfaces defined here. The Postgres
// implementation lives in repository/postgres/.
package dialer
