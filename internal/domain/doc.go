// Package domain models citizen-reported civic problems (potholes, broken
// lighting, litter, ...) and the proximity grouping used to declutter the map.
//
// # Data Source
//
// Problem records are owned by an external report store. Every create or
// update is published to the Kafka source topic as one flat JSON object keyed
// by the problem ID; a message with an empty value is a deletion tombstone.
// The service consumes that feed, normalizes each record and keeps a local
// read model for the list and map endpoints.
//
// # Record Conventions
//
// Status:
//
//	The store accepts free-form status text. Values are trimmed and
//	lower-cased, then mapped to one of three canonical states:
//	  pending      "pending", "pendente"
//	  in_progress  "in_progress", "in progress", "em_andamento", "em andamento"
//	  resolved     "resolved", "resolvido"
//	Anything else (including empty) is treated as pending so that a bad
//	status never blocks rendering. See [NormalizeStatus].
//
// Coordinates arrive in one of three shapes, resolved in this priority order:
//
//	object  "coordinates": {"latitude": -19.74, "longitude": -47.93}
//	        (the short {"lat", "lng"} spelling decodes to the same shape;
//	        per axis the first spelling holding a number is used)
//	flat    "latitude": -19.74, "longitude": -47.93 on the record itself
//	pair    "coordinates": [-19.74, -47.93]   (latitude first)
//
//	Values may be JSON numbers or numeric strings. The first shape that holds
//	a valid point wins; latitude must be within [-90, 90], longitude within
//	[-180, 180], both finite. A record without a valid point is kept in the
//	list view but never appears on the map. See [ResolveCoordinates].
//
// # Grouping
//
// [GroupProblems] is a greedy single pass: each problem joins the first
// existing group (in creation order) with the same status whose seed lies
// strictly closer than the threshold, otherwise it seeds a new group. The seed
// is the first member's point and is never recentered, so a chain of joins can
// stretch a group beyond twice the threshold. Results depend on input order.
//
// # ID Generation
//
// IDs come from the record, then the message key. When both are missing a
// UUIDv5 of the raw payload is used, so replaying the same message always
// yields the same ID.
package domain
