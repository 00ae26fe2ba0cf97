// Package domain models building thermal-comfort data: sensor readings,
// buildings with their comfort bands and occupancy schedules, and the
// evaluated index reports.
//
// # Data Source
//
// Zone air-temperature time series come from a Mortar-style building-data
// testbed. Sensor points are identified by metadata URIs under the
// http://buildsys.org/ontologies prefix and discovered through Brick
// metadata queries (see internal/adapter/brick). Readings can alternatively
// arrive as live telemetry on a Kafka topic, published by per-building
// gateways, and are then served from the local store.
//
// # Units and Time
//
// Temperatures are degrees Fahrenheit throughout, the testbed's native unit.
// Telemetry readings tagged "C"/"degC" are converted on ingest; everything
// downstream assumes °F. Reading timestamps are UTC on the wire. Occupancy
// and season classification happen in building-local time: each building
// carries an IANA timezone (default UTC) and readings are shifted into it
// before the hour/weekday/month of a sample is inspected.
//
// # Occupied Time
//
// A sample counts as occupied when it falls on Monday through Friday with
// StartHour <= hour < EndHour of the building's schedule (24-hour clock,
// half-open interval). Holidays are not modeled.
//
// # Seasons and Comfort Bands
//
// The year splits into two seasons by calendar month: summer runs from
// SummerStart through the month before WinterStart, winter covers the rest
// (wrapping the year boundary). The canonical split is May through October
// summer, November through April winter. Each season has its own comfort
// band [low, high]; a sample is an outlier when its value falls outside the
// band of the season its local month belongs to.
//
// # Telemetry Wire Format
//
// Gateways publish flat JSON per reading:
//
//	{"point":"http://buildsys.org/ontologies/bldg1#zat_1","ts":"2016-01-04T09:15:00Z","value":71.5,"unit":"F"}
//
// "unit" may be omitted (°F assumed). Malformed messages are skipped and
// counted, never retried. Readings are idempotent by (point URI, timestamp):
// the store inserts with INSERT OR IGNORE, so replaying a topic or
// re-fetching a window is safe without coordination.
package domain
